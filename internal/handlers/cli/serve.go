package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gabapcia/meshgate/internal/handlers/rest"
	"github.com/gabapcia/meshgate/internal/notifications"

	"github.com/urfave/cli/v3"
)

// shutdownTimeout bounds how long in-flight HTTP requests may run once a
// termination signal arrives.
const shutdownTimeout = 30 * time.Second

// serveCommand returns a CLI command that starts the notification dispatcher
// and the REST server, then blocks until an interrupt (SIGINT or SIGTERM)
// triggers a graceful shutdown.
//
// Usage example:
//
//	meshgate serve
func serveCommand(server *rest.Server, dispatcher notifications.Dispatcher) *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Description: "Starts the procedure gateway: webhook dispatcher and REST API.",
		Usage:       "Runs the gateway until Ctrl+C or a termination signal, then shuts down gracefully.",
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := dispatcher.Start(ctx); err != nil {
				return err
			}
			defer dispatcher.Close()

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			serverErr := make(chan error, 1)
			go func() {
				serverErr <- server.Start(ctx)
			}()

			select {
			case err := <-serverErr:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			return server.Shutdown(shutdownCtx)
		},
	}
}
