// Package hook installs live call-out patches into executing flash code.
//
// A hook replaces 8 bytes at the hook address with an ARM redirect that
// branches into a compiled handler staged in scratch RAM. The redirect
// itself is written through the overlay's write-then-remap protocol, so
// from the target's point of view it was always there.
//
// Installation order keeps failures harmless: placement checks, then
// compilation, then the handler write, then the redirect. The one thing
// that cannot be checked here is instruction boundaries at the hook
// site; cutting an instruction in half is on the operator.
package hook
