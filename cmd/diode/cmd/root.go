package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/diode/internal/config"
	"github.com/OpenTraceLab/diode/internal/logger"
)

var (
	// Global flags
	verbose bool

	v        = config.NewViper()
	settings *config.Settings
	log      = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "diode",
	Short: "diode - KiCad netlist to atopile project compiler",
	Long: `diode turns a KiCad netlist export into an atopile project:
  - one component definition per distinct part under library/
  - one module per schematic sheet
  - a root module wiring the sheets together

Examples:
  diode convert board.net ./board           # Write elec/src/*.ato under ./board
  diode convert --watch board.net ./board   # Regenerate on every netlist export
  diode inspect board.net                   # Show what the netlist contains
  diode verify board.net ./board            # Check generated wiring against the netlist`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	flags.String(config.KeyLogLevel, "warn", "log level: debug, info, warn, error")
	flags.String(config.KeyLogFormat, "console", "log format: console or json")

	// flags win over DIODE_* environment variables when set
	for _, key := range []string{config.KeyLogLevel, config.KeyLogFormat} {
		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(err)
		}
	}
}

func setup(cmd *cobra.Command, args []string) error {
	s, err := config.Load(v)
	if err != nil {
		return err
	}
	if verbose {
		s.LogLevel = "debug"
	}
	settings = s

	l, err := logger.New(&logger.Config{Level: s.LogLevel, Format: s.LogFormat, Output: "stderr"})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	log = l
	return nil
}
