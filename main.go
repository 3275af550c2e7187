package main

import (
	"os"

	"github.com/cgruenke/jobrank/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
