package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/GoCodeAlone/portal/cmd/portal/cmd"
)

func main() {
	rootCmd := cmd.NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
