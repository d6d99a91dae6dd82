// Garnet CLI - assemble, store and run bytecode units
package main

import (
	"fmt"
	"os"

	"github.com/chazu/garnet/vm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if exc, ok := vm.AsError(err); ok {
			fmt.Fprintln(os.Stderr, exc.FormatTraceback())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
