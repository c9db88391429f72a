package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/crewbook/crewbook/internal/buildinfo"
	"github.com/crewbook/crewbook/internal/cli"
	"github.com/crewbook/crewbook/internal/config"
	"github.com/crewbook/crewbook/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	app, err := cli.NewApp(ctx, cfg, logger)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
