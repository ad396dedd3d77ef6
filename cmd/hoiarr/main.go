package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hoiarr/hoiarr/internal/config"
	"github.com/hoiarr/hoiarr/internal/domain/incident"
	"github.com/hoiarr/hoiarr/internal/domain/reference"
	"github.com/hoiarr/hoiarr/internal/domain/scoring"
	"github.com/hoiarr/hoiarr/internal/platform/auth"
	"github.com/hoiarr/hoiarr/internal/platform/db"
	"github.com/hoiarr/hoiarr/internal/platform/metrics"
	"github.com/hoiarr/hoiarr/internal/platform/middleware"
	"github.com/hoiarr/hoiarr/migrations"
)

// uploadRoute is the only endpoint that accepts table-sized bodies.
const uploadRoute = "POST /api/v1/batches"

func main() {
	rootCmd := &cobra.Command{
		Use:          "hoiarr",
		Short:        "Hospital incident analysis and risk reporting",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(referenceCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Process an incident table and print the batch summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stderr)

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			if pool != nil {
				defer pool.Close()
			}

			ref, err := loadReference(ctx, cfg, pool)
			if err != nil {
				return err
			}
			svc := incident.NewService(newPipeline(cfg, ref, logger, nil), nil)
			b, err := svc.IngestFile(ctx, args[0])
			if err != nil {
				return err
			}

			top, _ := cmd.Flags().GetInt("top")
			printBatch(cmd.OutOrStdout(), b, ref.Status(), top)
			return nil
		},
	}
	cmd.Flags().Int("top", scoring.DefaultTopN, "Number of most frequent codes to list")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run reference table migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, err := requirePool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, err := requirePool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrations(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func referenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Inspect and import reference tables",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load the configured reference tables and report what was found",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			if pool != nil {
				defer pool.Close()
			}

			ref, err := loadReference(ctx, cfg, pool)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reference source: %s\n", cfg.ReferenceSource)
			printReference(cmd.OutOrStdout(), ref.Status())
			return nil
		},
	})

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Copy the reference files into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := requirePool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			ref, err := reference.Load(ctx, fileSource(cfg))
			if err != nil {
				return err
			}
			if err := reference.NewPGSource(pool, cfg.CategoryKeyLength).Import(ctx, ref); err != nil {
				return fmt.Errorf("import reference tables: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Reference tables imported.")
			printReference(cmd.OutOrStdout(), ref.Status())
			return nil
		},
	}
	cmd.AddCommand(importCmd)

	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			roles, _ := cmd.Flags().GetStringSlice("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tok, err := auth.IssueToken(jwtConfig(cfg), subject, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("subject", "", "Token subject (user id)")
	cmd.Flags().StringSlice("role", []string{auth.RoleQuality}, "Granted role, repeatable")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if pool != nil {
		defer pool.Close()
		logger.Info().Msg("connected to database")
	}

	ref, err := loadReference(ctx, cfg, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load reference tables")
	}
	st := ref.Status()
	logger.Info().
		Str("source", cfg.ReferenceSource).
		Int("units", st.Units).
		Int("categories", st.Categories).
		Int("sentinels", st.Sentinels).
		Msg("reference tables loaded")

	m := metrics.NewIngest()
	svc := incident.NewService(newPipeline(cfg, ref, logger, m), nil)
	e := newServer(cfg, logger, pool, svc, m)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer assembles the HTTP surface. pool may be nil.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, svc *incident.Service, m *metrics.Ingest) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(middleware.SecurityConfig{
		HSTS:            cfg.TLSEnabled,
		NoStorePrefixes: []string{"/api/v1/"},
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, map[string]string{
		uploadRoute: strconv.FormatInt(cfg.MaxUploadBytes, 10),
	}))

	e.GET("/health", db.HealthHandler(pool, map[string]db.StatusFunc{
		"reference": func() any { return svc.Pipeline().Reference().Status() },
		"batch":     func() any { return batchHealth(svc) },
	}))
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware(jwtConfig(cfg)))
	} else {
		apiV1.Use(auth.JWTMiddleware(jwtConfig(cfg)))
	}

	incident.NewHandler(svc).RegisterRoutes(apiV1)
	scoring.NewHandler(svc, scoringConfig(cfg)).RegisterRoutes(apiV1)

	return e
}

func batchHealth(svc *incident.Service) any {
	b, err := svc.Current()
	if err != nil {
		return "none"
	}
	return map[string]any{
		"id":      b.ID,
		"source":  b.Source,
		"records": b.Len(),
		"loaded":  b.LoadedAt,
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes JSON in every environment except development, which gets
// the console writer.
func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.IsDev() {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// openPool connects when a database is configured and returns nil otherwise.
func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func requirePool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func fileSource(cfg *config.Config) reference.FileSource {
	return reference.FileSource{
		CategoryFile: cfg.CategoryFile,
		SentinelFile: cfg.SentinelFile,
		UnitFile:     cfg.UnitFile,
		KeyLength:    cfg.CategoryKeyLength,
	}
}

// referenceSource picks the configured source. A nil Source loads empty tables.
func referenceSource(cfg *config.Config, pool *pgxpool.Pool) (reference.Source, error) {
	switch cfg.ReferenceSource {
	case config.ReferenceFile:
		return fileSource(cfg), nil
	case config.ReferencePostgres:
		if pool == nil {
			return nil, errors.New("REFERENCE_SOURCE=postgres requires DATABASE_URL")
		}
		return reference.NewPGSource(pool, cfg.CategoryKeyLength), nil
	case config.ReferenceNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown REFERENCE_SOURCE %q", config.ErrInvalid, cfg.ReferenceSource)
	}
}

func loadReference(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*reference.Tables, error) {
	src, err := referenceSource(cfg, pool)
	if err != nil {
		return nil, err
	}
	return reference.Load(ctx, src)
}

func newPipeline(cfg *config.Config, ref *reference.Tables, logger zerolog.Logger, rec incident.Recorder) *incident.Pipeline {
	p := incident.NewPipeline(ref, incident.Options{CodePrefixLength: cfg.CodePrefixLength}, logger)
	if rec != nil {
		p.SetRecorder(rec)
	}
	return p
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
	}
}

func scoringConfig(cfg *config.Config) scoring.Config {
	return scoring.Config{
		Weights: scoring.Weights{
			Frequency: cfg.WeightFrequency,
			Severity:  cfg.WeightSeverity,
			Trend:     cfg.WeightTrend,
		},
		TrendWindow: cfg.TrendWindowMonths,
		Goals:       scoring.DefaultGoals,
	}
}

func printBatch(w io.Writer, b *incident.Batch, ref reference.Status, top int) {
	ov := scoring.BuildOverview(b.Records, b.Dropped)
	fmt.Fprintf(w, "Batch %s (%s)\n", b.ID, b.Source)
	fmt.Fprintf(w, "%-22s %d\n", "Rows read:", b.RowsRead)
	fmt.Fprintf(w, "%-22s %d\n", "Records:", b.Len())
	fmt.Fprintf(w, "%-22s %d\n", "Dropped:", b.Dropped)
	fmt.Fprintf(w, "%-22s %d\n", "Unclassified severity:", b.Unclassified)
	fmt.Fprintf(w, "%-22s %d\n", "Sentinel events:", ov.Sentinel)
	fmt.Fprintf(w, "%-22s %d\n", "Severe (E and up):", ov.Severe)
	fmt.Fprintf(w, "%-22s %d\n", "Unresolved:", ov.Unresolved)
	if b.Len() > 0 {
		fmt.Fprintf(w, "%-22s %s to %s (%d months)\n", "Period:",
			b.Start.Format("2006-01-02"), b.End.Format("2006-01-02"), b.SpanMonths)
	}
	if !ref.UnitsLoaded || !ref.CategoriesLoaded || !ref.SentinelsLoaded {
		fmt.Fprintln(w, "Reference tables are incomplete; run `hoiarr reference check`.")
	}

	codes := scoring.TopCodes(b.Records, top)
	if len(codes) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-10s %-8s %s\n", "CODE", "COUNT", "NAME")
	fmt.Fprintln(w, "---------- -------- ----------------------------------------")
	for _, c := range codes {
		fmt.Fprintf(w, "%-10s %-8d %s\n", c.Code, c.Count, c.Name)
	}
}

func printReference(w io.Writer, st reference.Status) {
	loaded := func(ok bool) string {
		if ok {
			return "loaded"
		}
		return "absent"
	}
	fmt.Fprintf(w, "%-12s %-8s %s\n", "TABLE", "STATUS", "ENTRIES")
	fmt.Fprintln(w, "------------ -------- --------")
	fmt.Fprintf(w, "%-12s %-8s %d units, %d aliases, %d groups\n", "units", loaded(st.UnitsLoaded), st.Units, st.UnitAliases, st.Groups)
	fmt.Fprintf(w, "%-12s %-8s %d codes\n", "categories", loaded(st.CategoriesLoaded), st.Categories)
	fmt.Fprintf(w, "%-12s %-8s %d codes\n", "sentinels", loaded(st.SentinelsLoaded), st.Sentinels)
}

func printMigrations(w io.Writer, statuses []db.MigrationStatus) {
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
