// Package codebridge compiles operator-supplied code for the target.
//
// The shell lets the operator type C++-subset expressions and assembly
// one-liners that run on the drive's ARM core. This package owns the
// contract with the compiler: a Compiler turns source plus the session's
// definition table into raw bytes linked at a chosen address, and any
// diagnostic comes back as a CodeError with the tool's message verbatim.
//
// Toolchain is the production implementation, shelling out to an ARM
// cross toolchain (gcc/as/ld/objcopy). Tests substitute their own
// Compiler so no toolchain is needed.
//
// The definition table (Defines) keys fragments by their normalized
// first line cut at the first '{' or '='. The keying is a heuristic
// carried over from the shell's history: collisions are possible and the
// later define silently wins.
package codebridge
