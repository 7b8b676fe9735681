// Command taskctl inspects and moves task snapshots without running the
// server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"schedule-tracker/internal/config"
	"schedule-tracker/internal/telemetry"
	"schedule-tracker/pkg/snapshot"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// storageFlags point a command at a snapshot store. Unset flags fall back
// to the config file and environment the server reads.
type storageFlags struct {
	config  string
	backend string
	path    string
	dsn     string
}

func newRootCmd() *cobra.Command {
	flags := &storageFlags{}
	rootCmd := &cobra.Command{
		Use:           "taskctl",
		Short:         "Inspect and migrate schedule-tracker snapshots",
		Version:       telemetry.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.config, "config", "config.yaml", "path to the YAML config file")
	pf.StringVar(&flags.backend, "backend", "", "storage backend (csv, sqlite, postgres)")
	pf.StringVar(&flags.path, "path", "", "csv file or sqlite database")
	pf.StringVar(&flags.dsn, "dsn", "", "postgres connection string")

	rootCmd.AddCommand(listCmd(flags))
	rootCmd.AddCommand(checkCmd(flags))
	rootCmd.AddCommand(exportCmd(flags))
	rootCmd.AddCommand(migrateCmd(flags))
	return rootCmd
}

// resolve merges the flags over the loaded config.
func (f *storageFlags) resolve(cmd *cobra.Command) (snapshot.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return snapshot.Config{}, fmt.Errorf("load config: %w", err)
	}
	sc := cfg.Snapshot()
	if cmd.Flags().Changed("backend") {
		sc.Backend = f.backend
	}
	if cmd.Flags().Changed("path") {
		sc.Path = f.path
	}
	if cmd.Flags().Changed("dsn") {
		sc.DSN = f.dsn
	}
	return sc, nil
}
