package main

import (
	"os"

	"github.com/smartstudy-abroad/smartstudy/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
