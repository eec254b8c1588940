// Package app provides application initialization and dependency wiring.
//
// App is the container holding every long-lived component: configuration,
// the database pool, Genkit, the stores and the chat engine. Setup builds
// them in dependency order; Close releases them in reverse.
package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halcyon0/halcyon/internal/api"
	"github.com/halcyon0/halcyon/internal/chat"
	"github.com/halcyon0/halcyon/internal/companion"
	"github.com/halcyon0/halcyon/internal/config"
	"github.com/halcyon0/halcyon/internal/history"
	"github.com/halcyon0/halcyon/internal/knowledge"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// Core services
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	// Domain components
	Companions *companion.Store
	History    *history.Store
	Knowledge  *knowledge.Store
	Engine     *chat.Engine
	Server     *api.Server

	// Lifecycle management. bgCancel stops the background context handed
	// to the engine; wg tracks the engine's detached writes.
	bgCancel     context.CancelFunc
	wg           sync.WaitGroup
	otelShutdown func(context.Context) error
}

// Close gracefully shuts down all resources. Detached writes get a bounded
// grace period before the pool closes under them.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		a.Logger.Warn("background writes did not finish before shutdown")
	}

	if a.bgCancel != nil {
		a.bgCancel()
	}

	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}

	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.Logger.Warn("shutting down tracer provider", "error", err)
		}
	}

	return nil
}
