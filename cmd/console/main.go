package main

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	root := newRootCmd(nil)
	root.Version = version
	root.SetVersionTemplate(`{{printf "kestra-console version %s\n" .Version}}`)

	if err := root.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// Exit codes of the console commands.
const (
	ExitCodeSuccess      = 0
	ExitCodeError        = 1
	ExitCodeAuthRequired = 2
	ExitCodeAuthFailed   = 3
)

var (
	errAuthRequired = errors.New("authentication required")
	errAuthFailed   = errors.New("authentication failed")
)

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, errAuthRequired):
		return ExitCodeAuthRequired
	case errors.Is(err, errAuthFailed):
		return ExitCodeAuthFailed
	default:
		return ExitCodeError
	}
}
