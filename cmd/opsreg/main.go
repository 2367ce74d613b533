// Command opsreg manages the operation registry: it scans declaration
// trees for decorated operation definitions and synchronizes them into
// the partition store.
package main

import (
	"fmt"
	"os"

	"opsreg/internal/config"
	"opsreg/internal/logging"
	"opsreg/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose bool
	scanDir string
	dbPath  string
	stage   string
	owner   string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "opsreg",
	Short: "opsreg - operation registry and declaration scanner",
	Long: `opsreg maintains a registry of named, callable API operations
partitioned by owner and tag.

Operations are declared in Python source with @op(...) / @vop(...)
decorators; opsreg discovers them by static analysis (no scanned code is
ever executed), validates them, and synchronizes them into the registry
with fanout across every tag plus the implicit "all" partition.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine working directory: %w", err)
		}
		if err := logging.Initialize(cwd); err != nil {
			logger.Warn("category logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&scanDir, "dir", ".", "directory to search for op declarations")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the partition database")
	rootCmd.PersistentFlags().StringVar(&stage, "stage", "", "staging environment used to resolve the var file")
	rootCmd.PersistentFlags().StringVar(&owner, "owner", "system", "owner to read or write operations for")

	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(watchCmd)
}

// openStore resolves the database location and opens the partition store.
// Resolution failure is a configuration error and aborts the command.
func openStore() (*store.SQLiteStore, error) {
	path, err := config.ResolveDBPath(stage, dbPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("opening partition store", zap.String("path", path))
	return store.NewSQLiteStore(path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
