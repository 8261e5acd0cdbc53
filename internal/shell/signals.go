/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package shell

import (
	"os"
	"os/signal"
)

// installSignalHandling wires the forwarding behavior spec §4.3/§5
// requires: Ctrl-C forwards to a running child's process group and is
// otherwise a no-op, SIGTERM/SIGQUIT/SIGHUP forward to the child or
// else exit the shell cleanly, and SIGWINCH reaches PTY children so
// they can resize. The handler itself never blocks or takes a lock; it
// only reads/writes the shell's atomic state, per spec §5's "a signal
// handler never holds a lock" rule.
func (s *Shell) installSignalHandling() (stop func()) {
	ch := make(chan os.Signal, 8)
	notifySubstrateSignals(ch)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig, ok := <-ch:
				if !ok {
					return
				}
				s.handleSignal(sig)
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}

func (s *Shell) handleSignal(sig os.Signal) {
	pgid := int(s.childPgid.Load())

	if isWinch(sig) {
		if pgid != 0 {
			_ = forwardSignal(pgid, signalNumber(sig))
		}
		return
	}

	if isInterrupt(sig) {
		if pgid != 0 {
			_ = forwardSignal(pgid, signalNumber(sig))
		}
		s.interrupted.Store(true)
		return
	}

	// SIGTERM/SIGQUIT/SIGHUP: forward to a running child, or exit
	// cleanly if the shell is idle.
	if pgid != 0 {
		_ = forwardSignal(pgid, signalNumber(sig))
		return
	}
	os.Exit(0)
}
