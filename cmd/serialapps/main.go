package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// exitCodeError is used for every fatal or usage error.
const exitCodeError = 2

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	return exitCodeError
}
