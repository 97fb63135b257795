package commands

import (
	"time"

	"github.com/spf13/cobra"

	"bitchat/internal/app"
)

var (
	configFile     string
	name           string
	scanTimeout    time.Duration
	connectTimeout time.Duration
	logLevel       string
	logFormat      string
	noAdvertise    bool

	cfg app.Config
)

func Execute() error {
	root := &cobra.Command{
		Use:   "bitchat",
		Short: "Peer-to-peer chat over Bluetooth Low Energy",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := app.LoadConfig(configFile)
			if err != nil {
				return err
			}
			// Flags beat config file and environment when given
			if name != "" {
				loaded.Name = name
			}
			if scanTimeout > 0 {
				loaded.ScanTimeout = scanTimeout
			}
			if connectTimeout > 0 {
				loaded.ConnectTimeout = connectTimeout
			}
			if logLevel != "" {
				loaded.LogLevel = logLevel
			}
			if logFormat != "" {
				loaded.LogFormat = logFormat
			}
			if noAdvertise {
				loaded.NoAdvertise = true
			}
			cfg = loaded
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./bitchat.yaml)")
	root.PersistentFlags().StringVarP(&name, "name", "n", "", "display name advertised to peers")
	root.PersistentFlags().DurationVar(&scanTimeout, "scan-timeout", 0, "discovery sweep duration")
	root.PersistentFlags().DurationVar(&connectTimeout, "connect-timeout", 0, "per-attempt dial timeout")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log output (console or json)")
	root.PersistentFlags().BoolVar(&noAdvertise, "no-advertise", false, "skip the peripheral role, connect-only")

	root.AddCommand(chatCmd(), scanCmd(), versionCmd())
	return root.Execute()
}
