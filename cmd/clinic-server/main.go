package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicore/clinic/internal/app"
	"github.com/clinicore/clinic/internal/config"
	"github.com/clinicore/clinic/internal/domain/billing"
	"github.com/clinicore/clinic/internal/domain/identity"
	"github.com/clinicore/clinic/internal/platform/db"
	"github.com/clinicore/clinic/internal/platform/metrics"
	"github.com/clinicore/clinic/internal/platform/middleware"
	"github.com/clinicore/clinic/internal/platform/result"
	"github.com/clinicore/clinic/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Multi-tenant clinic orchestration server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(roleCmd())
	rootCmd.AddCommand(insuranceCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic server and its ops endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := cmd.Context()
			migrator, closeFn, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default: embedded migrations)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := cmd.Context()
			migrator, closeFn, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default: embedded migrations)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func roleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage staff roles",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant or global role",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			name, _ := cmd.Flags().GetString("name")
			desc, _ := cmd.Flags().GetString("description")
			global, _ := cmd.Flags().GetBool("global")

			return withClinic(cmd.Context(), func(ctx context.Context, c *app.Clinic) error {
				res, err := c.Identity.CreateRole(ctx, tenant, identity.CreateRoleRequest{
					Name:        name,
					Description: desc,
					Global:      global,
				})
				if err != nil {
					return err
				}
				if !res.IsOK() {
					return failureError(res.Failure())
				}
				role := res.Value()
				fmt.Fprintf(cmd.OutOrStdout(), "Created role %s (%s) in tenant %s\n", role.Name, role.ID, role.TenantID)
				return nil
			})
		},
	}
	createCmd.Flags().String("tenant", "", "Owning tenant id")
	createCmd.Flags().String("name", "", "Role name")
	createCmd.Flags().String("description", "", "Role description")
	createCmd.Flags().Bool("global", false, "Create the role in the shared global scope")
	cmd.AddCommand(createCmd)
	return cmd
}

func insuranceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insurance",
		Short: "Manage insurance providers",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register an insurance provider for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			req := billing.CreateInsuranceProviderRequest{}
			req.Name, _ = cmd.Flags().GetString("name")
			req.Phone, _ = cmd.Flags().GetString("phone")
			req.Email, _ = cmd.Flags().GetString("email")
			req.Address, _ = cmd.Flags().GetString("address")

			return withClinic(cmd.Context(), func(ctx context.Context, c *app.Clinic) error {
				res, err := c.Billing.CreateInsuranceProvider(ctx, tenant, req)
				if err != nil {
					return err
				}
				if !res.IsOK() {
					return failureError(res.Failure())
				}
				p := res.Value()
				fmt.Fprintf(cmd.OutOrStdout(), "Created insurance provider %s (%s)\n", p.Name, p.ID)
				return nil
			})
		},
	}
	createCmd.Flags().String("tenant", "", "Owning tenant id")
	createCmd.Flags().String("name", "", "Provider name")
	createCmd.Flags().String("phone", "", "Contact phone")
	createCmd.Flags().String("email", "", "Contact email")
	createCmd.Flags().String("address", "", "Postal address")
	cmd.AddCommand(createCmd)
	return cmd
}

// withClinic connects to the configured database and runs fn against the wired orchestrators.
func withClinic(ctx context.Context, fn func(ctx context.Context, c *app.Clinic) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, app.New(pool, app.Options{
		DefaultCurrency: cfg.DefaultCurrency,
		SetupTokenTTL:   cfg.SetupTokenTTL,
		Logger:          newLogger(cfg, os.Stderr),
	}))
}

func failureError(f *result.Failure) error {
	return fmt.Errorf("%s: %s", f.Code, f.Message)
}

func openMigrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrationFS(dir)), pool.Close, nil
}

// migrationFS returns the embedded migrations unless dir overrides them.
func migrationFS(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
	}
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).Level(cfg.Level()).With().Timestamp().Logger()
}

// newOpsServer builds the echo server exposing health and metrics endpoints.
func newOpsServer(logger zerolog.Logger, pinger db.Pinger, stats func() *db.PoolStats, g prometheus.Gatherer, timeout time.Duration) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(timeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pinger, stats))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(g)))
	return e
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Logger
	logger := newLogger(cfg, os.Stdout)

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.New(reg)

	e := newOpsServer(logger, pool, func() *db.PoolStats { return db.GetPoolStats(pool) }, reg, 10*time.Second)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
