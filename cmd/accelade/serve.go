package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pthm/accelade"
	"github.com/pthm/accelade/lib/backend"
	"github.com/pthm/accelade/lib/logging"
)

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference sync backend with a demo page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	return cmd
}

func runServe(ctx context.Context, rootOpts *rootOptions, addr string) error {
	cfg := accelade.DefaultConfig()
	if rootOpts.config != "" {
		var err error
		if cfg, err = accelade.LoadConfig(rootOpts.config); err != nil {
			return err
		}
	}
	log := logging.Logger().Named("serve")

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	backend.Mount(e,
		backend.WithUpdatePath(cfg.UpdateURL),
		backend.WithBatchPath(cfg.BatchUpdateURL),
		backend.WithCSRFToken(cfg.CSRFToken),
		backend.OnUpdate(func(component, property string, value any) {
			log.Info("update", zap.String("component", component),
				zap.String("property", property), zap.Any("value", value))
		}),
	)

	e.GET("/", func(c echo.Context) error {
		return backend.Render(c, demoPage(cfg))
	})

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	}
}

// demoPage is a counter component with a synced count and the toast
// container.
func demoPage(cfg accelade.Config) templ.Component {
	counter := accelade.Root("section", accelade.Props{
		ID:       "counter",
		State:    map[string]any{"count": 0},
		Sync:     []string{"count"},
		Features: map[string]string{"toggle": "details"},
	}, templ.Join(
		templ.Raw(`<h1>Counter</h1>
<p>Count: <strong a-text="count">0</strong></p>
<button a-on:click="increment('count')">+</button>
<button a-on:click="decrement('count')">-</button>
<button a-on:click="reset()">reset</button>
<button a-on:click="toggle()">details</button>
<p a-show="details">Changes to count are posted to `+templ.EscapeString(cfg.UpdateURL)+`.</p>`),
		accelade.Script(`return { reset() { $set('count', 0) } }`),
	))

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html>
<html><head><meta charset="utf-8">
<meta name="csrf-token" content="`+templ.EscapeString(cfg.CSRFToken)+`">
<title>accelade</title></head><body>
`); err != nil {
			return err
		}
		if err := counter.Render(ctx, w); err != nil {
			return err
		}
		if err := accelade.ToastContainer().Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}
