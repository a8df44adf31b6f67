package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Settings is the resolved CLI configuration. Flags win over STOREFRONT_*
// environment variables, which win over the config file.
type Settings struct {
	Server  string        `mapstructure:"server"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
	Output  string        `mapstructure:"output"`
}

// LoadSettings reads storefrontctl.yaml from the usual places, overlays the
// environment and bound flags.
func LoadSettings(configFile string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("timeout", 15*time.Second)
	v.SetDefault("output", "table")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("storefrontctl")
		v.SetConfigType("yaml")
		v.AddConfigPath("./")
		v.AddConfigPath("$HOME/.storefront/")
	}

	v.SetEnvPrefix("STOREFRONT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for _, name := range []string{"server", "token", "timeout", "output"} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(name, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if s.Output != "table" && s.Output != "json" {
		return nil, fmt.Errorf("unsupported output %q", s.Output)
	}
	return &s, nil
}
