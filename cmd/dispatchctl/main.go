package main

import (
	"os"

	"dispatchctl/cmd/dispatchctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
