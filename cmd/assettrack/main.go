package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erazemk/assettrack/internal/api"
	"github.com/erazemk/assettrack/internal/audit"
	"github.com/erazemk/assettrack/internal/auth"
	"github.com/erazemk/assettrack/internal/blob"
	"github.com/erazemk/assettrack/internal/blob/fs"
	"github.com/erazemk/assettrack/internal/blob/s3"
	"github.com/erazemk/assettrack/internal/config"
	"github.com/erazemk/assettrack/internal/db"
	"github.com/erazemk/assettrack/internal/imaging"
	"github.com/erazemk/assettrack/internal/metrics"
	"github.com/erazemk/assettrack/internal/model"
	"github.com/erazemk/assettrack/internal/store"
)

// levelRouter is a slog.Handler that routes records below ERROR to stdout
// and ERROR+ to stderr.
type levelRouter struct {
	min    slog.Level
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lr.min
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		min:    lr.min,
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		min:    lr.min,
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. If logPath is non-empty, all
// levels are also written to that file. Returns a cleanup function that
// closes the log file (if opened).
func setupLogger(logPath, format string, debug bool) (func(), error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	newHandler := func(w io.Writer) slog.Handler {
		if format == "json" {
			return slog.NewJSONHandler(w, opts)
		}
		return slog.NewTextHandler(w, opts)
	}

	handler := &levelRouter{
		min:    level,
		stdout: newHandler(stdoutW),
		stderr: newHandler(stderrW),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func main() {
	flags := flag.NewFlagSet("assettrack", flag.ContinueOnError)

	var configPath string
	flags.StringVar(&configPath, "config", "", "")
	flags.StringVar(&configPath, "c", "", "")

	var dbPath string
	flags.StringVar(&dbPath, "db", "", "")
	flags.StringVar(&dbPath, "d", "", "")

	var addr string
	flags.StringVar(&addr, "addr", "", "")
	flags.StringVar(&addr, "a", "", "")

	var adminUser string
	flags.StringVar(&adminUser, "user", "", "")
	flags.StringVar(&adminUser, "u", "", "")

	var logPath string
	flags.StringVar(&logPath, "log", "", "")
	flags.StringVar(&logPath, "l", "", "")

	flags.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: assettrack [flags]

Flags:
  -c, -config <path>      YAML config file (default: none, environment only)
  -d, -db <path>          SQLite database path (default: assettrack.db)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        admin username on first run (default: admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

Every setting can also be given as ASSETTRACK_<SECTION>_<KEY>, e.g.
ASSETTRACK_BLOB_DRIVER=s3.
`)
	}

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if flags.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", flags.Arg(0))
		flags.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	if adminUser != "" {
		cfg.Auth.AdminUser = adminUser
	}
	if logPath != "" {
		cfg.Log.File = logPath
	}

	closeLog, err := setupLogger(cfg.Log.File, cfg.Log.Format, cfg.IsDevelopment())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	version, _ := db.Version(database)
	slog.Info("database ready", "path", cfg.DB.Path, "version", version)

	if err := bootstrapAdmin(ctx, cfg.Auth.AdminUser, database); err != nil {
		return err
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		if secret, err = store.GetJWTSecret(ctx, database); err != nil {
			return fmt.Errorf("loading jwt secret: %w", err)
		}
	}
	ttl, err := cfg.TokenTTL()
	if err != nil {
		return err
	}

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	slog.Info("blob store ready", "driver", blobs.Driver())

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	hub := audit.NewHub()
	defer hub.Close()
	sinks := []audit.Sink{audit.StoreSink{DB: database}, hub}
	if len(cfg.Audit.Kafka.Brokers) > 0 {
		kafka := audit.NewKafkaSink(cfg.Audit.Kafka.Brokers, cfg.Audit.Kafka.Topic)
		defer kafka.Close()
		sinks = append(sinks, kafka)
		slog.Info("audit kafka sink enabled", "brokers", cfg.Audit.Kafka.Brokers, "topic", cfg.Audit.Kafka.Topic)
	}
	recorder := audit.NewRecorder(cfg.Audit.Buffer, m, sinks...)
	defer recorder.Close()

	if fixed, err := store.ReconcileDiscrepancyFlags(ctx, database); err != nil {
		slog.Error("reconciling discrepancy flags", "error", err)
	} else if fixed > 0 {
		slog.Warn("corrected stale discrepancy flags", "count", fixed)
	}
	if purged, err := store.PurgeRevokedTokens(ctx, database); err != nil {
		slog.Error("purging revoked tokens", "error", err)
	} else if purged > 0 {
		slog.Info("purged expired token revocations", "count", purged)
	}

	dev := cfg.IsDevelopment()
	router := api.NewRouter(&api.Deps{
		DB:            database,
		Issuer:        auth.NewIssuer(secret, ttl),
		Blobs:         blobs,
		Images:        imaging.New(cfg.Uploads.MaxDimension),
		Audit:         recorder,
		Hub:           hub,
		Metrics:       m,
		MaxUploadSize: cfg.Uploads.MaxFileSize,
		Dev:           dev,
	})

	mux := http.NewServeMux()
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}
	mux.Handle("/", router)

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           api.RecoveryMiddleware(dev)(api.LoggingMiddleware(m)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", server.Addr, "env", cfg.App.Env)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}

	slog.Info("server stopped, flushing audit log and closing database")
	return nil
}

// bootstrapAdmin creates the first administrator when the database has no
// users and prints its generated password once.
func bootstrapAdmin(ctx context.Context, username string, database *sql.DB) error {
	n, err := store.CountUsers(ctx, database)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if n > 0 {
		return nil
	}

	password, err := auth.GeneratePassword()
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if _, err := store.CreateUser(ctx, database, username, hash, model.RoleAdmin); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	fmt.Println()
	slog.Info("created initial admin user", "username", username)
	return nil
}

func openBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	if cfg.Blob.Driver == blob.DriverS3 {
		s := cfg.Blob.S3
		bucket, err := s3.New(ctx, s3.Config{
			Bucket:          s.Bucket,
			Region:          s.Region,
			Endpoint:        s.Endpoint,
			Prefix:          s.Prefix,
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
			UsePathStyle:    s.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("opening s3 blob store: %w", err)
		}
		return bucket, nil
	}
	dir, err := fs.New(cfg.Uploads.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening upload directory: %w", err)
	}
	return dir, nil
}
