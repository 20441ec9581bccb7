package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/iudanet/gophcache/internal/client/api"
	"github.com/iudanet/gophcache/internal/client/config"
	"github.com/iudanet/gophcache/internal/client/engine"
	"github.com/iudanet/gophcache/internal/client/iocli"
	"github.com/iudanet/gophcache/internal/client/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server   string
	Models   string // Models path to the YAML model config
	Token    string
	DataPath string
	Format   string // "json" | "text"
	Timeout  time.Duration
	AskToken bool
	Verbose  bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{FormatText, FormatJSON}

type session struct {
	cli     *Cli
	metrics *prometheus.Registry
}

// NewRootCommand creates the root command of the client.
func NewRootCommand(out iocli.IO, version string) *cobra.Command {
	opts := &RootOptions{}
	s := &session{}

	cmd := &cobra.Command{
		Use:     "gophcache",
		Short:   "gophcache - cached REST client",
		Long:    "An entity cache with an offline write queue for REST backends.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return s.open(opts, out)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	cmd.PersistentFlags().StringVar(&opts.Server, "server", "http://localhost:8080/api/v1", "backend base URL")
	cmd.PersistentFlags().StringVarP(&opts.Models, "models", "m", "models.yaml", "path to the model configuration")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("GOPHCACHE_TOKEN"), "bearer token (default $GOPHCACHE_TOKEN)")
	cmd.PersistentFlags().BoolVar(&opts.AskToken, "ask-token", false, "prompt for the bearer token")
	cmd.PersistentFlags().StringVar(&opts.DataPath, "data-path", "", "payload path inside response bodies (overrides the config)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", api.DefaultTimeout, "request timeout")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatText, "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newGetCommand(s))
	cmd.AddCommand(newShellCommand(s))
	cmd.AddCommand(newRunCommand(s))

	return cmd
}

// open builds the engine stack for one invocation.
func (s *session) open(opts *RootOptions, out iocli.IO) error {
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg, err := config.Load(opts.Models)
	if err != nil {
		return err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("invalid models: %w", err)
	}
	modifiers, err := cfg.Modifiers()
	if err != nil {
		return fmt.Errorf("invalid modifiers: %w", err)
	}

	token := opts.Token
	if opts.AskToken {
		if token, err = out.ReadSecret("Token: "); err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
	}

	s.metrics = prometheus.NewRegistry()
	metrics, err := engine.NewMetrics(s.metrics)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	dataPath := cfg.DataPath
	if opts.DataPath != "" {
		dataPath = opts.DataPath
	}

	client := api.NewClient(opts.Server,
		api.WithTimeout(opts.Timeout),
		api.WithToken(token),
		api.WithLogger(logger))

	eng, err := engine.New(client, store.New(registry, store.WithLogger(logger)),
		engine.WithDataPath(dataPath),
		engine.WithModifiers(modifiers),
		engine.WithMetrics(metrics),
		engine.WithLogger(logger))
	if err != nil {
		return err
	}

	s.cli = New(out, eng, opts.Format, logger)
	return nil
}

func newGetCommand(s *session) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "get <model> [id]",
		Short: "Fetch one entity or the whole collection",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := strings.Join(args, " ")
			if force {
				line += " --force"
			}
			return s.cli.runGet(cmd.Context(), line)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "skip the cache")
	return cmd
}

func newShellCommand(s *session) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session",
		Long: `Start an interactive session over one in-memory cache.

Entities fetched or queued in the session stay cached until it ends.

Example:
  gophcache --models ./models.yaml shell
  gophcache shell --metrics-addr :9091`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						s.cli.logger.Error("Metrics server failed", "error", err)
					}
				}()
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(ctx)
				}()
			}
			return s.cli.Shell(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve engine metrics on this address")
	return cmd
}

func newRunCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a session script",
		Long: `Execute session commands from a file, one per line.

Lines starting with # are comments. The first failing line stops the script.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open script: %w", err)
			}
			defer func() {
				_ = f.Close()
			}()
			return s.cli.RunScript(cmd.Context(), iocli.NewStream(f, io.Discard))
		},
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
