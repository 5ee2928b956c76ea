// vendo drives a coin-operated vending machine transaction engine.
//
// Usage:
//
//	vendo run                         interactive machine shell
//	vendo run --config machine.yaml   custom catalog, price, denominations
//	vendo play scenario.yaml          run a scripted scenario and verify it
package main

import (
	"fmt"
	"os"

	"github.com/roach88/vendo/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
