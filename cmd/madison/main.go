package main

import (
	"os"

	"github.com/debtools/madison/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
