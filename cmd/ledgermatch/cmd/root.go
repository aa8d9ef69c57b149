// Package cmd wires the matching core into the ledgermatch command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledgermatch/internal/store"
	"ledgermatch/internal/store/sqlite"
	"ledgermatch/pkg/logger"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "ledgermatch",
	Short: "Transaction matching and reconciliation tool",
	Long: `Ledgermatch validates import batches, detects duplicate and reversal
transactions, maintains payee aliases and reconciles bank statements against
a ledger.

Examples:
  ledgermatch validate --tenant acme import.csv
  ledgermatch reconcile --tenant acme --db ledger.db --period-start 2024-01-01 --period-end 2024-01-31 statement.csv
  ledgermatch payees suggest --tenant acme --db ledger.db`,
	Version: getVersionString(),
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return NewErrorHandler().Handle(err)
	}
	return 0
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text or json)")
	rootCmd.PersistentFlags().String("tenant", "", "tenant id (required)")
	rootCmd.PersistentFlags().String("db", "", "path to the SQLite ledger database (in-memory store if omitted)")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("tenant", rootCmd.PersistentFlags().Lookup("tenant"))
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}
	}

	viper.SetEnvPrefix("LEDGERMATCH")
	viper.AutomaticEnv()
}

// buildLogger constructs the process logger from the resolved flags.
func buildLogger() (logger.Logger, error) {
	cfg := logger.DefaultConfig()
	cfg.Format = viper.GetString("log_format")
	if viper.GetBool("verbose") {
		cfg.Level = "debug"
	}
	return logger.New(cfg)
}

// openStore returns the configured ledger store and audit log, plus a close
// function. A --db path selects SQLite; otherwise an empty in-memory store
// is used, which suits single-shot CSV workflows.
func openStore() (store.Store, store.AuditLog, func() error, error) {
	if path := viper.GetString("db"); path != "" {
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, s.Close, nil
	}
	m := store.NewMemoryStore()
	return m, m, func() error { return nil }, nil
}

// requireTenant resolves the tenant flag common to every subcommand.
func requireTenant() (string, error) {
	tenant := viper.GetString("tenant")
	if tenant == "" {
		return "", fmt.Errorf("--tenant is required")
	}
	return tenant, nil
}

// SetVersionInfo records build-time version details.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
