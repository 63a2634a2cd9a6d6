package main

import (
	"fmt"
	"os"

	"github.com/web3-frozen/nav-oracle/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(&cli.RootOptions{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "navctl:", err)
		os.Exit(cli.ExitCode(err))
	}
}
