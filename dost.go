package main

import (
	"fmt"
	"os"

	cli "github.com/dostlabs/dost/cmd/dost"
)

func main() {
	if err := cli.SetupRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
