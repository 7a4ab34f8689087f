package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Default().Error("backoffice", slog.Any("error", err))
		os.Exit(1)
	}
}
