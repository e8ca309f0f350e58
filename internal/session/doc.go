// Package session ties one operator to one drive.
//
// A Session owns the state that outlives any single command: the device
// handle, the include/definition table read by every code evaluation,
// and the r0/r1 register pair that injected routines use for input and
// results. Passing the session explicitly, rather than reading ambient
// globals, keeps every operation's dependencies visible.
package session
