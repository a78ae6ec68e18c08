package main

import (
	"os"

	"github.com/conneroisu/gridinline/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
