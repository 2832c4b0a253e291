package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"
)

var isVerbose bool

var rootCmd = &cobra.Command{
	Use:   "dualrouting",
	Short: "Dual-routing cross-partition operations CLI",
	Long:  `Operator tooling for the dual-routing Bedrock proxy: extract and validate the VPN configuration deployed across the GovCloud and Commercial partitions.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()

		slogLevel := slog.LevelInfo
		if isVerbose {
			slogLevel = slog.LevelDebug
		}
		stylelog.InitDefault(&tint.Options{
			Level:      slogLevel,
			TimeFormat: time.RFC3339,
		})
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&isVerbose, "verbose", false, "enable debug logging")
}
