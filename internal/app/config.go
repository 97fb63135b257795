package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"bitchat/internal/domain"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Name           string        // display name advertised and prefixed to every message; empty prompts interactively
	ScanTimeout    time.Duration // how long a discovery sweep runs
	ConnectTimeout time.Duration // per-attempt dial timeout
	DrainPoll      time.Duration // inbox poll interval for the chat loop
	LogLevel       string        // zerolog level name, e.g. "info"
	LogFormat      string        // "console" or "json"
	NoAdvertise    bool          // skip the peripheral role, run initiator-only

	Central    domain.Central    // optional; defaults to the real BLE central
	Advertiser domain.Advertiser // optional; defaults to the real BLE peripheral
}

// LoadConfig merges defaults, an optional config file, and BITCHAT_* env
// vars into a Config. A missing config file is fine; an unreadable one is
// an error.
func LoadConfig(file string) (Config, error) {
	viper.SetDefault("name", "")
	viper.SetDefault("scan_timeout", 5*time.Second)
	viper.SetDefault("connect_timeout", 10*time.Second)
	viper.SetDefault("drain_poll", 500*time.Millisecond)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "console")
	viper.SetDefault("no_advertise", false)

	viper.SetEnvPrefix("bitchat")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		viper.SetConfigName("bitchat")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.bitchat")
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return Config{
		Name:           viper.GetString("name"),
		ScanTimeout:    viper.GetDuration("scan_timeout"),
		ConnectTimeout: viper.GetDuration("connect_timeout"),
		DrainPoll:      viper.GetDuration("drain_poll"),
		LogLevel:       viper.GetString("log_level"),
		LogFormat:      viper.GetString("log_format"),
		NoAdvertise:    viper.GetBool("no_advertise"),
	}, nil
}
