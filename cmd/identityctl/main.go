package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/teamify/internal/cmd"
	"github.com/mkrupp/teamify/internal/infra/config"
	"github.com/mkrupp/teamify/internal/infra/logging"
)

const (
	appName = "teamify"
	svcName = "identityctl"
)

func main() {
	var (
		cfg cmd.Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		fail(err)
	}

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		fail(err)
	}

	// Log lines go to stderr unless configured otherwise; stdout carries command output.
	if cfg.Log.Output == "stdout" {
		cfg.Log.Output = "stderr"
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := cmd.Execute(ctx, cfg, os.Args[1:]); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
			os.Exit(130)
		}

		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
