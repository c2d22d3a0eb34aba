package main

import (
	"context"
	"os"

	"github.com/edward-ap/lofiradio/internal/logging"
)

func main() {
	runner := NewRunner(RunnerOpts{Logger: logging.New(os.Stderr, "info")})

	app := rootCommand(runner)
	err := app.Run(context.Background(), os.Args)
	if err != nil {
		runner.logger.Error("application error", "err", err)
	}
	runner.Close()
	if err != nil {
		os.Exit(1)
	}
}
