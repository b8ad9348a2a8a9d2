// reap terminates orphaned automation-driven Chrome/Chromium processes.
package main

import (
	"os"

	"github.com/steveyegge/reap/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
