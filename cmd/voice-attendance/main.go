package main

import (
	"fmt"
	"os"
)

// @title Voice Attendance API
// @version 1.0.0
// @description Voice-based student identification and attendance ledger
// @BasePath /api/v1
// @schemes http

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
