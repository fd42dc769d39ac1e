package main

import (
	"fmt"
	"os"

	"github.com/ppiankov/labkit/internal/cli"
	"github.com/ppiankov/labkit/internal/llm"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", llm.UserMessage(err))
		os.Exit(1)
	}
}
