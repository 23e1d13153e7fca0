// Command storyctl runs profile and reminder maintenance against the same
// backends as the server.
package main

import (
	"context"
	"os"

	"github.com/janisto/storytime-api/internal/app"
	"github.com/janisto/storytime-api/internal/config"
	applog "github.com/janisto/storytime-api/internal/platform/logging"
)

func main() {
	defer func() { _ = applog.Sync() }()

	if err := newRootCmd(openApp).Execute(); err != nil {
		os.Exit(1)
	}
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg)
}
