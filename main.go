// Command tircorder is the process entry point: it builds the cobra root
// command and executes it, following the standard cobra main/cmd split
// that cmd/root.go's RootCommand is written for.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/chboishabba/tircorder-JOBBIE/cmd"
)

func main() {
	if err := cmd.RootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
