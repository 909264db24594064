package main

import (
	"fmt"
	"os"

	"github.com/equipwatch/equipwatch/cmd/healthctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
