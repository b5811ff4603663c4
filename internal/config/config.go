package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel string    `mapstructure:"log_level"`
	Device   string    `mapstructure:"device"`
	Run      RunConfig `mapstructure:"run"`
}

type RunConfig struct {
	Shape string `mapstructure:"shape"`
	Fill  string `mapstructure:"fill"`
	Seed  int64  `mapstructure:"seed"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Device:   "CPU",
		Run: RunConfig{
			Shape: "1",
			Fill:  "zeros",
			Seed:  0,
		},
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
	fs.String("device", defaults.Device, "Device to run on")
	fs.String("run-shape", defaults.Run.Shape, "Comma-separated input shape")
	fs.String("run-fill", defaults.Run.Fill, "Input fill: zeros, ones, random, or comma-separated values")
	fs.Int64("run-seed", defaults.Run.Seed, "Seed for random input fill")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("GONNX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("gonnx")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("device", c.Device)
	v.SetDefault("run.shape", c.Run.Shape)
	v.SetDefault("run.fill", c.Run.Fill)
	v.SetDefault("run.seed", c.Run.Seed)
}

// bindFlags ties each flag to its config key so flag values land in the
// nested Config fields.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	keys := map[string]string{
		"log_level": "log-level",
		"device":    "device",
		"run.shape": "run-shape",
		"run.fill":  "run-fill",
		"run.seed":  "run-seed",
	}
	for key, name := range keys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
