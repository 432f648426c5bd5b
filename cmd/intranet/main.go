package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spec-kit/intranet/internal/cli"
	"github.com/spec-kit/intranet/internal/config"
	apperrors "github.com/spec-kit/intranet/pkg/util/errorutil"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(cfg, os.Stdout, os.Stderr)
	if err := app.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", apperrors.UserMessage(err))
		stop()
		os.Exit(1)
	}
}
