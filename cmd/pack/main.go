package main

import (
	"os"

	"github.com/davezuko/hardhat-pack/pkg/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
