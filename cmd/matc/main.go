// Command matc compiles, inspects and scripts materials from the command
// line.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "matc:", err)
		os.Exit(1)
	}
}
