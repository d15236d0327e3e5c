package main

import (
	"fmt"
	"os"

	"writingstuff/cmd"
	"writingstuff/pkg/logger"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logger.Sync()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger.Sync()
}
