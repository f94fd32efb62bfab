// Package main implements the projecthunt command: HTTP API server, MCP
// stdio server and maintenance tasks.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/donovan0902/project-hunt/internal/app"
	"github.com/donovan0902/project-hunt/internal/config"
	"github.com/donovan0902/project-hunt/internal/logging"
	"github.com/donovan0902/project-hunt/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"

	// configPath is the optional YAML config file
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "projecthunt",
	Short: "Project listing service with duplicate detection and hybrid search",
	Long: `projecthunt stores project listings, warns submitters about near-duplicate
listings before they publish, and ranks search results by fusing vector
similarity with keyword relevance.

Configuration comes from an optional YAML file, a .env file and
PROJECTHUNT_* environment variables.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("projecthunt %s (built %s, %s, driver %s)\n",
		version, buildTime, storage.BuildMode, storage.DriverName))
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(backfillCmd)
}

// bootstrap loads configuration, builds the logger and wires the app.
func bootstrap(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Info("projecthunt starting",
		zap.String("version", version),
		zap.String("build_mode", storage.BuildMode),
		zap.String("driver", storage.DriverName),
		zap.Bool("vector_extension", storage.VectorExtensionAvailable))

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}
