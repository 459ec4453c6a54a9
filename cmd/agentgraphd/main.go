package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// CLI is the daemon's command line surface.
type CLI struct {
	LogLevel string `env:"LOG_LEVEL" default:"info" help:"Log level (debug, info, warn, error)"`

	Serve    ServeCmd    `cmd:"" default:"withargs" help:"Run the HTTP server (default)"`
	Validate ValidateCmd `cmd:"" help:"Validate a graph definitions file and exit"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("agentgraphd"),
		kong.Description("Multi-agent graph execution server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
