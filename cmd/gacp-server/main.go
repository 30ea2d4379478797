// cmd/gacp-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gacp-certification/internal/common/config"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gacp-server",
	Short: "GACP certification wizard service",
	Long: `Serves the GACP certification wizard API and runs the job workers
of the post-submit certification process.

Commands:
  serve    - HTTP API, optionally with the job workers in-process
  workers  - job workers only
  migrate  - apply the Postgres schema`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: configs/config.yaml + config.<APP_ENVIRONMENT>.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workersCmd)
	rootCmd.AddCommand(migrateCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
