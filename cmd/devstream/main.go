package main

import (
	"os"

	"github.com/fulvian/devstream/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
