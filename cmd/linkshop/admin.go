package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	lsnats "github.com/Strob0t/linkshop/internal/adapter/nats"
	"github.com/Strob0t/linkshop/internal/adapter/natskv"
	"github.com/Strob0t/linkshop/internal/adapter/postgres"
	"github.com/Strob0t/linkshop/internal/config"
	"github.com/Strob0t/linkshop/internal/domain/admin"
	"github.com/Strob0t/linkshop/internal/domain/plan"
	"github.com/Strob0t/linkshop/internal/domain/tenant"
	"github.com/Strob0t/linkshop/internal/secrets"
	"github.com/Strob0t/linkshop/internal/service"
)

// AdminCmd groups the operator commands that act on tenants and admins.
type AdminCmd struct {
	CreateTenant CreateTenantCmd `cmd:"" help:"Create a shop."`
	CreateAdmin  CreateAdminCmd  `cmd:"" help:"Create an admin account for a shop."`
	SetPlan      SetPlanCmd      `cmd:"" help:"Change the subscription plan of a shop. Servers pick it up at once over NATS, otherwise within cache.tenant_ttl."`
	ListTenants  ListTenantsCmd  `cmd:"" help:"List all shops."`
}

type adminDeps struct {
	tenants *service.TenantService
	auth    *service.AuthService
	close   func()

	// shared is set when tenant changes reach running servers over NATS.
	// Otherwise servers notice them once cache.tenant_ttl has passed.
	shared    bool
	tenantTTL time.Duration
}

func loadAdminDeps(ctx context.Context, g *Globals, f *DBFlags) (*adminDeps, error) {
	cfg, err := g.load(config.Overrides{DSN: optional(f.DSN)})
	if err != nil {
		return nil, err
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	vault, err := secrets.NewVault(secrets.Chain(
		secrets.DotenvLoader(g.EnvFile, secrets.Keys...),
		secrets.EnvLoader(secrets.Keys...),
	))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("secrets: %w", err)
	}

	store := postgres.NewStore(pool)
	deps := &adminDeps{
		tenants:   service.NewTenantService(store, nil, 0),
		auth:      service.NewAuthService(store, cfg.Auth, vault),
		close:     pool.Close,
		tenantTTL: cfg.Cache.TenantTTL,
	}
	if cfg.NATS.URL == "" {
		return deps, nil
	}

	q, err := lsnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("nats: %w", err)
	}
	l2, err := natskv.Open(ctx, q.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
	if err != nil {
		_ = q.Close()
		pool.Close()
		return nil, fmt.Errorf("l2 cache: %w", err)
	}
	// Changes delete the shared L2 entries and tell every server to drop
	// its in-process copy.
	deps.tenants = service.NewTenantService(store, l2, cfg.Cache.TenantTTL)
	deps.tenants.ShareInvalidations(q, nil)
	deps.shared = true
	deps.close = func() {
		if err := q.Drain(); err != nil {
			fmt.Fprintf(os.Stderr, "nats drain: %v\n", err)
		}
		pool.Close()
	}
	return deps, nil
}

type CreateTenantCmd struct {
	DBFlags `embed:""`

	Slug     string `required:"" help:"Subdomain of the shop."`
	Name     string `required:"" help:"Display name."`
	Plan     string `help:"Plan tier (free, starter, pro)." default:"free"`
	Currency string `help:"ISO currency code; empty uses the default."`
	Timezone string `help:"IANA timezone; empty uses the default."`
}

func (c *CreateTenantCmd) Run(ctx context.Context, g *Globals) error {
	deps, err := loadAdminDeps(ctx, g, &c.DBFlags)
	if err != nil {
		return err
	}
	defer deps.close()

	t, err := deps.tenants.Create(ctx, tenant.CreateRequest{
		Slug:     c.Slug,
		Name:     c.Name,
		Plan:     plan.Tier(c.Plan),
		Currency: c.Currency,
		Timezone: c.Timezone,
	})
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Tenant created: %s (id=%s, plan=%s)\n", t.Slug, t.ID, t.Plan)
	return nil
}

type CreateAdminCmd struct {
	DBFlags `embed:""`

	Tenant   string `required:"" help:"Slug of the shop."`
	Email    string `required:"" help:"Login email."`
	Name     string `required:"" help:"Display name."`
	Password string `help:"Password; prompted when empty." env:"LINKSHOP_ADMIN_PASSWORD"` //nolint:gosec // CLI flag
	Role     string `help:"Role (owner, staff)." enum:"owner,staff" default:"owner"`
}

func (c *CreateAdminCmd) Run(ctx context.Context, g *Globals) error {
	pass := c.Password
	if pass == "" {
		var err error
		pass, err = promptPassword("Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if pass != confirm {
			return fmt.Errorf("passwords do not match")
		}
	}

	deps, err := loadAdminDeps(ctx, g, &c.DBFlags)
	if err != nil {
		return err
	}
	defer deps.close()

	t, err := deps.tenants.GetBySlug(ctx, c.Tenant)
	if err != nil {
		return fmt.Errorf("tenant %s: %w", c.Tenant, err)
	}
	a, err := deps.auth.CreateAdmin(ctx, admin.CreateRequest{
		TenantID: t.ID,
		Email:    c.Email,
		Name:     c.Name,
		Password: pass,
		Role:     admin.Role(c.Role),
	})
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Admin created: %s (id=%s, role=%s, tenant=%s)\n", a.Email, a.ID, a.Role, t.Slug)
	return nil
}

type SetPlanCmd struct {
	DBFlags `embed:""`

	Tenant  string        `required:"" help:"Slug of the shop."`
	Plan    string        `required:"" help:"Plan tier (free, starter, pro)."`
	Expires time.Duration `help:"Plan lifetime from now; zero never expires."`
	Trial   time.Duration `help:"Trial period from now; zero ends any trial."`
}

func (c *SetPlanCmd) Run(ctx context.Context, g *Globals) error {
	deps, err := loadAdminDeps(ctx, g, &c.DBFlags)
	if err != nil {
		return err
	}
	defer deps.close()

	t, err := deps.tenants.GetBySlug(ctx, c.Tenant)
	if err != nil {
		return fmt.Errorf("tenant %s: %w", c.Tenant, err)
	}
	u := tenant.PlanUpdate{Plan: plan.Tier(c.Plan)}
	now := time.Now().UTC()
	if c.Expires > 0 {
		at := now.Add(c.Expires)
		u.PlanExpiresAt = &at
	}
	if c.Trial > 0 {
		at := now.Add(c.Trial)
		u.TrialEndsAt = &at
	}
	updated, err := deps.tenants.SetPlan(ctx, t.ID, u)
	if err != nil {
		return fmt.Errorf("set plan: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Plan of %s set to %s\n", updated.Slug, updated.Plan)
	if !deps.shared {
		fmt.Fprintf(os.Stderr, "NATS is not configured: running servers apply the change within %s.\n", deps.tenantTTL)
	}
	return nil
}

type ListTenantsCmd struct {
	DBFlags `embed:""`
}

func (c *ListTenantsCmd) Run(ctx context.Context, g *Globals) error {
	deps, err := loadAdminDeps(ctx, g, &c.DBFlags)
	if err != nil {
		return err
	}
	defer deps.close()

	tenants, err := deps.tenants.List(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	if len(tenants) == 0 {
		fmt.Println("No tenants found.")
		return nil
	}
	return writeTenants(os.Stdout, tenants)
}

func writeTenants(out io.Writer, tenants []tenant.Tenant) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSLUG\tNAME\tSTATUS\tPLAN\tEXPIRES")
	for i := range tenants {
		expires := "-"
		if tenants[i].PlanExpiresAt != nil {
			expires = tenants[i].PlanExpiresAt.Format(time.DateOnly)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			tenants[i].ID, tenants[i].Slug, tenants[i].Name, tenants[i].Status, tenants[i].Plan, expires)
	}
	return w.Flush()
}

// promptPassword reads a password from the terminal without echoing.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
