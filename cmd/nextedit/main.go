// Command nextedit drives the suggestion engine and the validated API
// client from a terminal.
package main

import (
	"fmt"
	"os"

	"github.com/ggoodman/nextedit-go/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
