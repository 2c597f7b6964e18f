package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

type pluginsFile struct {
	Plugins PluginsConfig `mapstructure:"plugins" toml:"plugins"`
}

// LoadPlugins reads only the [plugins] tables of path. Unlike Load it accepts
// standalone plugin credential files.
func LoadPlugins(path string) (PluginsConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("URLBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return PluginsConfig{}, fmt.Errorf("read plugin config: %w", err)
	}
	var f pluginsFile
	if err := v.Unmarshal(&f); err != nil {
		return PluginsConfig{}, fmt.Errorf("unmarshal plugin config: %w", err)
	}
	return f.Plugins, nil
}

// WritePluginsTemplate writes an empty credential table for every plugin.
func WritePluginsTemplate(path string) error {
	data, err := toml.Marshal(pluginsFile{})
	if err != nil {
		return fmt.Errorf("marshal plugin config: %w", err)
	}
	if _, err := EnsureParentDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write plugin config: %w", err)
	}
	return nil
}
