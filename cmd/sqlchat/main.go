// Package main is the sqlchat entry point.
package main

import (
	"os"

	"github.com/leapstack-labs/sqlchat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
