// Package watch samples memory over time and reports byte-level change.
//
// A Scanner reads every watched span each cycle and diffs it against the
// previous cycle. The first cycle only establishes the baseline. Watching
// is strictly read-only on the device, so a scan loop can be cancelled at
// any cycle boundary with nothing to clean up.
package watch
