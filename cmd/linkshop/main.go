// Command linkshop runs the multi-tenant shop API and its maintenance tasks.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/Strob0t/linkshop/internal/config"
)

var version = "dev"

// Globals are flags shared by every command.
type Globals struct {
	Config  string `help:"YAML config file." default:"linkshop.yaml" env:"LINKSHOP_CONFIG" type:"path"`
	EnvFile string `help:"Dotenv file read for config and secrets." default:".env" env:"LINKSHOP_ENV_FILE" type:"path"`
}

// load reads the configuration with the given command line overrides applied.
func (g *Globals) load(o config.Overrides) (*config.Config, error) {
	cfg, err := config.LoadWithOverrides(g.Config, g.EnvFile, o)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

type cli struct {
	Globals

	Version kong.VersionFlag `help:"Print version and exit."`

	Serve   ServeCmd   `cmd:"" default:"1" help:"Run the HTTP API."`
	Migrate MigrateCmd `cmd:"" help:"Manage database migrations."`
	Admin   AdminCmd   `cmd:"" help:"Manage tenants and admin accounts."`
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var c cli
	kctx := kong.Parse(&c,
		kong.Name("linkshop"),
		kong.Description("Multi-tenant shop API."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err := kctx.Run(&c.Globals); err != nil {
		slog.Error("fatal", "error", err)
		stop()
		os.Exit(1)
	}
}
