package main

import (
	"os"

	"github.com/hray3182/DeskPal/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
