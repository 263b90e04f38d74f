package main

import (
	"os"

	"github.com/go-kmon/kmon/cmd/kmon/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
