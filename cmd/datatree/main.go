// Package main provides the datatree command.
package main

import (
	"os"

	"github.com/leapstack-labs/datatree/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
