package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/crewbook/crewbook/internal/app"
	"github.com/crewbook/crewbook/internal/config"
	"github.com/crewbook/crewbook/internal/logging"
)

// App is the interactive shell over the persistence core.
type App struct {
	config *config.Config
	core   *app.App
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	core, err := app.New(ctx, c, log)
	if err != nil {
		return nil, err
	}
	return &App{
		config: c,
		core:   core,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

// Run starts the background backup/vacuum triggers and enters the REPL. It
// returns when the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.core.Run(ctx)
	defer func() { _ = a.core.Close() }()

	a.Root(ctx)
}
