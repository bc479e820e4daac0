package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kitstock/assettag"
	"kitstock/automation"
	"kitstock/cache"
	"kitstock/config"
	"kitstock/database"
	"kitstock/loader"
)

var (
	configPath string
	logLevel   string
	cfg        config.Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "kitstock",
	Short: "Asset tag numbering and label rendering service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		logger, err = newLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./kitstock.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	serveCmd.Flags().String("addr", "", "listen address, overrides server.address")

	rootCmd.AddCommand(serveCmd, renderCmd, codeCmd, importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = level
	return zc.Build()
}

// openDatabase connects with the configured driver and applies the schema.
func openDatabase(ctx context.Context) (*sqlx.DB, error) {
	zap.S().Infof("Connecting to database (%s)...", cfg.Database.Driver)
	db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := loader.InitDatabase(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("database initialization failed: %w", err)
	}
	zap.S().Info("Database initialization complete.")
	return db, nil
}

// openCache uses Redis when an address is configured and the in-process
// cache otherwise, or when Redis is unreachable at startup.
func openCache(ctx context.Context) cache.Cache {
	cc := cache.DefaultConfig()
	cc.DefaultTTL = cfg.Cache.TTL
	if cfg.Redis.Address == "" {
		return cache.NewMemoryCache(cc)
	}
	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Config:   cc,
	})
	if err != nil {
		zap.S().Warnf("Redis unavailable (%v); using in-process cache", err)
		return cache.NewMemoryCache(cc)
	}
	zap.S().Infof("Label cache: redis %s", cfg.Redis.Address)
	return rc
}

func newRasterizer() *automation.Rasterizer {
	return automation.NewRasterizer(automation.Options{
		BrowserBin: cfg.Render.BrowserBin,
		Headless:   cfg.Render.Headless,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	labelCache := openCache(ctx)
	defer labelCache.Close()

	rz := newRasterizer()
	defer rz.Close()

	svc := assettag.NewService(db, labelCache, rz, assettag.Options{
		CacheTTL:      cfg.Cache.TTL,
		ExportWorkers: cfg.Render.ExportWorkers,
		DefaultScale:  cfg.Render.Scale,
	})

	addr := cfg.Server.Address
	if a, _ := cmd.Flags().GetString("addr"); a != "" {
		addr = a
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           SetupRoutes(Server{DB: db, Tags: svc, Rasterizer: rz, PNGScale: cfg.Render.Scale}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Infof("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server start error: %w", err)
	case <-ctx.Done():
	}

	zap.S().Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
