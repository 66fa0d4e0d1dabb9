package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"maxis/internal/config"
	"maxis/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Set up by PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "maxis",
	Short: "maxis - schema-driven MAXIS panel binder",
	Long: `maxis reads and writes MAXIS panels through their field schemas.

Panels are described as data (row, column and width of every field, the
code tables that decode them, and how repeating sections page). The
commands here drive the simulated host so schemas, code tables and job
files can be checked without a live session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			c.Logging.DebugMode = true
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}

		l, err := logging.New(c.Logging)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		cliLogger().Debug("config loaded", zap.String("path", configPath), zap.String("command", cmd.Name()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".maxis/config.yaml", "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(panelsCmd)
	rootCmd.AddCommand(codesCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(journalCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
