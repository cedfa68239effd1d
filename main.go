package main

import (
	"fmt"
	"os"

	"github.com/tphakala/audioloop/cmd"
)

func main() {
	rootCmd := cmd.RootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
