package main

import (
	"fmt"
	"os"

	"github.com/makkenzo/key-service-api/cmd/keyctl/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
