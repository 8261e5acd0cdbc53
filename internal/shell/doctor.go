/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package shell

import (
	"fmt"

	"github.com/substrate-run/substrate/internal/world"
)

// builtinDoctor reports world-backend availability the way spec
// §4.5.3 asks the doctor command to report kernel feature availability:
// which backend this session is actually using, whether the host could
// provision one right now, and whether the PATH shim is wired in.
func (s *Shell) builtinDoctor() int {
	fmt.Println("substrate doctor")
	fmt.Printf("  session:         %s\n", s.sessionID.String())

	if s.backend == nil {
		fmt.Println("  world backend:   none configured (commands run directly on the host)")
	} else {
		fmt.Printf("  world backend:   %s (active)\n", s.worldName)
	}

	if _, probed, err := world.Select(world.Options{Logger: s.logger}); err != nil {
		fmt.Printf("  host capability: unavailable (%v)\n", err)
	} else {
		fmt.Printf("  host capability: %s available\n", probed)
	}

	if s.shimDir == "" {
		fmt.Println("  path shim:       not wired (no shim directory configured)")
	} else {
		fmt.Printf("  path shim:       %s\n", s.shimDir)
	}

	if s.broker == nil {
		fmt.Println("  policy broker:   none configured (all commands allowed)")
	} else {
		fmt.Println("  policy broker:   active")
	}

	return 0
}
