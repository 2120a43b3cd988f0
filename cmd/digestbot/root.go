package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-digest/internal/config"
	"github.com/tbourn/go-chat-digest/internal/repo"
	"github.com/tbourn/go-chat-digest/internal/sysutil"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0"
var Version = "dev"

type rootOptions struct {
	envFile string
	cfg     config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "digestbot",
		Short:        "Chat digest bot: debounced, cached chat analysis",
		Long:         "digestbot stores group chat messages and serves summaries, horoscopes and answers over Telegram and HTTP, guarded by a per-operation debounce and a content-addressed result cache.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return opts.load()
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file to load (default: $DIGEST_ENV_FILE or .env)")

	root.AddCommand(serveCmd(opts))
	root.AddCommand(cleanupCmd(opts))
	root.AddCommand(statsCmd(opts))
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "digestbot %s\n", Version)
		},
	}
}

// load reads the dotenv file (a missing default file is fine), loads the
// configuration and installs the global logger.
func (o *rootOptions) load() error {
	path := sysutil.FirstNonEmpty(o.envFile, os.Getenv("DIGEST_ENV_FILE"), ".env")
	if err := godotenv.Load(path); err != nil {
		if o.envFile != "" || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pretty := cfg.LogPretty && !sysutil.IsTruthy(os.Getenv("NO_COLOR"))
	sysutil.SetupLogger(cfg.LogLevel, pretty, os.Stderr)
	o.cfg = cfg
	return nil
}

// openStore opens the configured database and migrates the schema.
func openStore(cfg config.Config) (*gorm.DB, error) {
	if cfg.DBDriver == "sqlite" {
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}
	db, err := repo.Open(repo.Options{
		Driver:      cfg.DBDriver,
		SQLitePath:  cfg.DBPath,
		PostgresDSN: cfg.DatabaseURL,
		Tracing:     cfg.OTEL.Enabled,
		Debug:       cfg.LogLevel == "debug",
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		_ = repo.Close(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// Execute runs the root cobra command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
