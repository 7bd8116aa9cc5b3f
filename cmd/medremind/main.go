package main

import (
	"fmt"
	"os"
)

const (
	Version = "0.1.0"
	appName = "medremind"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
