package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/linkshop/internal/adapter/postgres"
	"github.com/Strob0t/linkshop/internal/config"
)

// MigrateCmd groups the schema migration commands.
type MigrateCmd struct {
	Up      MigrateUpCmd      `cmd:"" help:"Apply all pending migrations."`
	Down    MigrateDownCmd    `cmd:"" help:"Roll back migrations."`
	Version MigrateVersionCmd `cmd:"" help:"Print the current schema version."`
}

// DBFlags selects the database a command operates on.
type DBFlags struct {
	DSN string `help:"Postgres DSN, overrides postgres.dsn."`
}

func (f *DBFlags) dsn(g *Globals) (string, error) {
	cfg, err := g.load(config.Overrides{DSN: optional(f.DSN)})
	if err != nil {
		return "", err
	}
	return cfg.Postgres.DSN, nil
}

type MigrateUpCmd struct {
	DBFlags `embed:""`
}

func (c *MigrateUpCmd) Run(ctx context.Context, g *Globals) error {
	dsn, err := c.dsn(g)
	if err != nil {
		return err
	}
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	slog.Info("migrations applied")
	return nil
}

type MigrateDownCmd struct {
	DBFlags `embed:""`

	Steps int `help:"Number of migrations to roll back." default:"1"`
}

func (c *MigrateDownCmd) Run(ctx context.Context, g *Globals) error {
	if c.Steps < 1 {
		return fmt.Errorf("--steps must be >= 1")
	}
	dsn, err := c.dsn(g)
	if err != nil {
		return err
	}
	if err := postgres.RollbackMigrations(ctx, dsn, c.Steps); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	slog.Info("migrations rolled back", "steps", c.Steps)
	return nil
}

type MigrateVersionCmd struct {
	DBFlags `embed:""`
}

func (c *MigrateVersionCmd) Run(ctx context.Context, g *Globals) error {
	dsn, err := c.dsn(g)
	if err != nil {
		return err
	}
	v, err := postgres.MigrationVersion(ctx, dsn)
	if err != nil {
		return fmt.Errorf("migrate version: %w", err)
	}
	fmt.Println(v)
	return nil
}
