package main

import (
	"os"

	"github.com/spigell/programme-advisor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
