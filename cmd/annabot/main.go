package main

import (
	"fmt"
	"os"

	"github.com/tillberg/autorestart"

	"github.com/soyeahso/annabot/internal/cli"
)

func main() {
	// Restart when the binary is rebuilt; handy while developing.
	if os.Getenv("ANNABOT_AUTORESTART") != "" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "annabot:", err)
		os.Exit(1)
	}
}
