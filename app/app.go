package app

import (
	"context"

	"log/slog"

	"github.com/winqerweb-code/winqerapp-insights/config"
	"github.com/winqerweb-code/winqerapp-insights/internal/ads/meta"
	"github.com/winqerweb-code/winqerapp-insights/internal/analytics/ga4"
	httpapi "github.com/winqerweb-code/winqerapp-insights/internal/api/http"
	"github.com/winqerweb-code/winqerapp-insights/internal/apisrv/insights"
	"github.com/winqerweb-code/winqerapp-insights/internal/calendar"
	"github.com/winqerweb-code/winqerapp-insights/internal/demo"
	"github.com/winqerweb-code/winqerapp-insights/internal/dependency"
	"github.com/winqerweb-code/winqerapp-insights/internal/reconcile"
	"github.com/winqerweb-code/winqerapp-insights/internal/store"
)

// App is the main application
type App struct {
	hs   *httpapi.Server
	db   dependency.Repository
	c    *config.Config
	done chan struct{}
}

// New returns a new instance of App
func New(c *config.Config) *App {
	return &App{
		c:    c,
		done: make(chan struct{}),
	}
}

// Start starts the app
func (a *App) Start(ctx context.Context) error {
	var err error
	slog.Default().InfoContext(ctx, "starting insights service")

	a.db, err = store.New(ctx, a.c.DB)
	if err != nil {
		slog.Default().ErrorContext(ctx, "couldn't connect to mysql",
			slog.String("err", err.Error()))
		return err
	}

	cal, err := calendar.NewResolver(a.c.Calendar, calendar.SystemClock{})
	if err != nil {
		slog.Default().ErrorContext(ctx, "failed to create calendar resolver",
			slog.String("err", err.Error()))
		return err
	}

	metaClient := meta.New(a.c.Meta)

	ga4Client, err := ga4.NewClient(ctx, &a.c.GA4)
	if err != nil {
		slog.Default().ErrorContext(ctx, "failed to create ga4 client",
			slog.String("err", err.Error()))
		return err
	}

	fixture := a.c.Demo
	if fixture.MonthlySpend.IsZero() && fixture.MonthlyImpressions == 0 {
		fixture = demo.DefaultFixture()
	}

	engine := reconcile.New(
		a.db.MetricCache(),
		a.db.Credentials(),
		metaClient,
		ga4Client,
		demo.New(fixture),
		cal,
		a.c.Reconcile,
	)

	insightsS := insights.New(a.db, engine, metaClient, cal)

	a.hs = httpapi.New(&a.c.HTTP)
	if err = a.hs.Start(ctx, insightsS, cal); err != nil {
		slog.Default().ErrorContext(ctx, "cannot start http server",
			slog.String("err", err.Error()))
		return err
	}

	return nil
}

// Stop stops the application and waits for all services to exit
func (a *App) Stop(ctx context.Context) {
	if a.hs != nil {
		_ = a.hs.Stop(ctx)
	}
	if a.db != nil {
		a.db.Close()
	}
	close(a.done)
}

// Done returns a channel that is closed after the application has exited
func (a *App) Done() chan struct{} {
	return a.done
}
