package command

import (
	"context"
	"fmt"

	"github.com/n1rna/invadmin/internal/config"
	"github.com/n1rna/invadmin/internal/entitysync"
	"github.com/n1rna/invadmin/internal/logger"
	"github.com/n1rna/invadmin/internal/output"
	"github.com/n1rna/invadmin/internal/schema"
	"github.com/n1rna/invadmin/internal/storage"
)

// App bundles everything a command needs once configuration is loaded.
type App struct {
	Config   *config.Config
	Registry *schema.Registry
	Service  *entitysync.Service
	Drafts   *storage.DraftStore
	Printer  *output.Printer
	Log      *logger.Logger
}

type appKey struct{}

// WithApp returns a new context with the app instance
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

// GetApp retrieves the app instance from the context
func GetApp(ctx context.Context) *App {
	if app, ok := ctx.Value(appKey{}).(*App); ok {
		return app
	}
	return nil
}

// RequireApp retrieves the app and returns an error if not found
func RequireApp(ctx context.Context) (*App, error) {
	app := GetApp(ctx)
	if app == nil {
		return nil, fmt.Errorf("command context not initialized")
	}
	return app, nil
}
