//go:build !linux

/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package world

// RunSeccompReexecChild is a no-op outside Linux: seccomp-bpf has no
// equivalent on macOS or Windows, so there is never a reexec child to
// service. cmd/substrate still calls this unconditionally at startup so
// the same first line works on every platform.
func RunSeccompReexecChild() {}
