// Package cli wires the gateway's commands into a command-line application.
package cli

import (
	"context"
	"os"

	"github.com/gabapcia/meshgate/internal/handlers/rest"
	"github.com/gabapcia/meshgate/internal/notifications"

	"github.com/urfave/cli/v3"
)

// Run initializes and executes the meshgate CLI application.
//
// It registers all available commands, including:
//
//   - `serve`: Starts the notification dispatcher and the REST server.
//
// Parameters:
//   - ctx: Context used to control the lifecycle of the CLI application.
//   - server: The REST server serving the gateway's HTTP surface.
//   - dispatcher: The notification dispatcher delivering webhook payloads.
func Run(ctx context.Context, server *rest.Server, dispatcher notifications.Dispatcher) error {
	app := &cli.Command{
		EnableShellCompletion: true,
		Name:                  "meshgate",
		Description:           "Command-line interface for running the meshgate procedure gateway.",
		Usage:                 "meshgate [command] [flags]",
		Commands: []*cli.Command{
			serveCommand(server, dispatcher),
		},
	}

	return app.Run(ctx, os.Args)
}
