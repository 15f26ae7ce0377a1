package main

import (
	"fmt"
	"os"

	"gofalre.io/fuelstock/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fuelstock:", err)
		os.Exit(1)
	}
}
