// Command branchctl manages the branches of the administration API from the
// terminal: one-shot list and CRUD commands, a paginated export, and an
// interactive list view.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/branchdesk/pkg/auth"
	"github.com/Sternrassler/branchdesk/pkg/branch"
	"github.com/Sternrassler/branchdesk/pkg/cache"
	"github.com/Sternrassler/branchdesk/pkg/client"
	"github.com/Sternrassler/branchdesk/pkg/config"
	"github.com/Sternrassler/branchdesk/pkg/logging"
	"github.com/Sternrassler/branchdesk/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath  string
	apiURL      string
	logLevel    string
	metricsAddr string
	output      string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "branchctl",
		Short: "Manage branches of the administration API",
		Long: `branchctl talks to the branch administration API.

Settings come from the config file, then BRANCHDESK_* environment
variables, then flags. Run 'branchctl login' once; the session is kept in
the configured token store (file, redis or memory).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", config.DefaultPath(), "config file")
	pf.StringVar(&opts.apiURL, "api-url", "", "API base URL (overrides config)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error, disabled")
	pf.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	pf.StringVarP(&opts.output, "output", "o", formatTable, "output format: table, yaml, json")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newListCmd(opts),
		newGetCmd(opts),
		newCreateCmd(opts),
		newUpdateCmd(opts),
		newDeleteCmd(opts),
		newExportCmd(opts),
		newBrowseCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// loadConfig reads the config file and applies flag overrides on top.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	if o.apiURL != "" {
		cfg.API.BaseURL = o.apiURL
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.metricsAddr != "" {
		cfg.Metrics.Addr = o.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app is the wired runtime of one command invocation.
type app struct {
	cfg      *config.Config
	redis    *redis.Client
	store    auth.TokenStore
	client   *client.Client
	session  *auth.Session
	branches *branch.Service
	logger   zerolog.Logger
	cancel   context.CancelFunc
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}

	logCfg := cfg.LoggerConfig()
	logCfg.Output = cmd.ErrOrStderr()
	logging.Setup(logCfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	a := &app{
		cfg:    cfg,
		logger: logging.NewLogger("branchctl"),
		cancel: cancel,
	}

	if cfg.Auth.Store == config.StoreRedis || cfg.Redis.Cache {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		a.logger.Debug().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	switch cfg.Auth.Store {
	case config.StoreRedis:
		a.store = auth.NewRedisStore(a.redis, cfg.Auth.RedisPrefix, 0)
	case config.StoreMemory:
		a.store = auth.NewMemoryStore()
	default:
		a.store = auth.NewFileStore(cfg.Auth.TokenFile)
	}

	clientCfg := cfg.ClientConfig()
	clientCfg.Tokens = a.store
	if cfg.Redis.Cache {
		clientCfg.Cache = cache.NewManager(a.redis)
	}
	clientCfg.OnUnauthorized = func(ctx context.Context, apiErr *client.APIError) {
		a.session.HandleUnauthorized(ctx, apiErr)
	}

	a.client, err = client.New(clientCfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create api client: %w", err)
	}
	a.session = auth.NewSession(auth.NewService(a.client), a.store, nil)
	a.branches = branch.NewService(a.client)

	if cfg.Metrics.Addr != "" {
		if _, err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
			a.Close()
			return nil, fmt.Errorf("serve metrics: %w", err)
		}
	}
	return a, nil
}

// Close releases the client, the Redis connection and the metrics server.
func (a *app) Close() {
	a.cancel()
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// errNotLoggedIn is returned after a 401 tore the session down.
var errNotLoggedIn = errors.New("not logged in or session expired, run 'branchctl login'")

// fail converts an API error into the command's error.
func (a *app) fail(apiErr *client.APIError) error {
	if apiErr == nil {
		return nil
	}
	if apiErr.Class == client.ErrorClassUnauthorized {
		return errNotLoggedIn
	}
	return apiErr
}
