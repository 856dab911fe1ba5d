package main

import (
	"fmt"
	"os"

	"github.com/kailas-cloud/docindex/internal/config"
)

func main() {
	// .env before config so ${GEMINI_API_KEY} can come from it
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "docindex:", err)
		os.Exit(1)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
