package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/gophcache/internal/server"
	"github.com/iudanet/gophcache/internal/server/handlers"
	"github.com/iudanet/gophcache/internal/server/storage/boltdb"
	"github.com/iudanet/gophcache/internal/server/storage/postgres"
	"github.com/iudanet/gophcache/internal/server/storage/sqlite"
	"github.com/iudanet/gophcache/pkg/api"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

type options struct {
	addr        string
	storage     string
	dbPath      string
	jwtSecret   string
	tokenTTL    time.Duration
	issueToken  string
	rate        int
	logLevel    string
	showVersion bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// Show version and exit if requested
	if opts.showVersion {
		printVersion(os.Stdout)
		return
	}

	if opts.issueToken != "" {
		if err := issueToken(os.Stdout, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("gophcache-server", flag.ContinueOnError)

	fs.StringVar(&opts.addr, "addr", ":8080", "HTTP listen address")
	fs.StringVar(&opts.storage, "storage", "sqlite", "Storage backend: sqlite, bolt or postgres")
	fs.StringVar(&opts.dbPath, "db", "gophcache.db", "Database file path, or DSN for postgres (\":memory:\" for sqlite in memory)")
	fs.StringVar(&opts.jwtSecret, "jwt-secret", os.Getenv("GOPHCACHE_JWT_SECRET"), "HMAC secret; enables bearer token auth on collections")
	fs.DurationVar(&opts.tokenTTL, "token-ttl", 24*time.Hour, "Lifetime of tokens issued with -issue-token")
	fs.StringVar(&opts.issueToken, "issue-token", "", "Print an access token for the given subject and exit")
	fs.IntVar(&opts.rate, "rate", 0, "Requests per minute per client IP (0 disables rate limiting)")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	switch opts.storage {
	case "sqlite", "bolt", "postgres":
	default:
		return options{}, fmt.Errorf("unknown storage %q, must be sqlite, bolt or postgres", opts.storage)
	}
	if opts.issueToken != "" && opts.jwtSecret == "" {
		return options{}, errors.New("-issue-token requires -jwt-secret")
	}
	return opts, nil
}

func (o options) jwtConfig() *handlers.JWTConfig {
	if o.jwtSecret == "" {
		return nil
	}
	return &handlers.JWTConfig{
		Secret:         []byte(o.jwtSecret),
		AccessTokenTTL: o.tokenTTL,
	}
}

func issueToken(w io.Writer, opts options) error {
	token, expiresIn, err := handlers.GenerateAccessToken(*opts.jwtConfig(), opts.issueToken)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(api.TokenResponse{AccessToken: token, ExpiresIn: expiresIn})
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

func openStorage(ctx context.Context, kind, path string) (server.Storage, error) {
	switch kind {
	case "bolt":
		return boltdb.New(ctx, path)
	case "postgres":
		return postgres.New(ctx, path)
	default:
		return sqlite.New(ctx, path)
	}
}

func run(ctx context.Context, opts options) error {
	logger, err := newLogger(opts.logLevel)
	if err != nil {
		return err
	}

	store, err := openStorage(ctx, opts.storage, opts.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", slog.Any("error", err))
		}
	}()

	cfg := server.Config{
		Addr:      opts.addr,
		Version:   Version,
		JWT:       opts.jwtConfig(),
		RateLimit: opts.rate,
	}
	if cfg.JWT == nil {
		logger.Warn("Authentication is disabled, set -jwt-secret to enable it")
	}

	srv, err := server.New(cfg, store, logger)
	if err != nil {
		return err
	}

	logger.Info("Starting gophcache server",
		slog.String("version", Version),
		slog.String("storage", opts.storage))

	return srv.Run(ctx)
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "gophcache server\n")
	fmt.Fprintf(w, "Version:    %s\n", Version)
	fmt.Fprintf(w, "Build Date: %s\n", BuildDate)
	fmt.Fprintf(w, "Git Commit: %s\n", GitCommit)
}
