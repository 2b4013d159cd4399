// Command offpos is an offline-first point of sale terminal.
package main

import (
	"os"

	"github.com/roach88/offpos/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:], os.Stdout, os.Stderr))
}
