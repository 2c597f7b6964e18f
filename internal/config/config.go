// Package config loads, validates and persists per-network bot configuration via Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// Database backends.
const (
	DBInMemory = "in-memory"
	DBSqlite   = "sqlite"
	DBPostgres = "postgres"
)

// maxConfigsInDir bounds how many files a single directory scan may contribute.
const maxConfigsInDir = 32

// Config captures one network's configuration. Each file describes one network.
type Config struct {
	Network    NetworkConfig    `mapstructure:"network" toml:"network"`
	Features   Features         `mapstructure:"features" toml:"features"`
	Params     Parameters       `mapstructure:"parameters" toml:"parameters"`
	HTTP       HTTPConfig       `mapstructure:"http" toml:"http"`
	Database   DatabaseConfig   `mapstructure:"database" toml:"database"`
	Plugins    PluginsConfig    `mapstructure:"plugins" toml:"plugins"`
	Connection ConnectionConfig `mapstructure:"connection" toml:"connection"`
	Logging    LoggingConfig    `mapstructure:"logging" toml:"logging"`

	// Path is the file this configuration was loaded from, if any.
	Path string `mapstructure:"-" toml:"-"`
}

// NetworkConfig names the network instance.
type NetworkConfig struct {
	Name   string `mapstructure:"name" toml:"name"`
	Enable bool   `mapstructure:"enable" toml:"enable"`
}

// Features toggles optional behavior.
type Features struct {
	ReportMetadata      bool `mapstructure:"report-metadata" toml:"report-metadata"`
	ReportMime          bool `mapstructure:"report-mime" toml:"report-mime"`
	MaskHighlights      bool `mapstructure:"mask-highlights" toml:"mask-highlights"`
	SendNotice          bool `mapstructure:"send-notice" toml:"send-notice"`
	History             bool `mapstructure:"history" toml:"history"`
	CrossChannelHistory bool `mapstructure:"cross-channel-history" toml:"cross-channel-history"`
	Invite              bool `mapstructure:"invite" toml:"invite"`
	Autosave            bool `mapstructure:"autosave" toml:"autosave"`
	SendErrorsToPoster  bool `mapstructure:"send-errors-to-poster" toml:"send-errors-to-poster"`
	ReplyWithErrors     bool `mapstructure:"reply-with-errors" toml:"reply-with-errors"`
	PartialURLs         bool `mapstructure:"partial-urls" toml:"partial-urls"`
	NickResponse        bool `mapstructure:"nick-response" toml:"nick-response"`
	Reconnect           bool `mapstructure:"reconnect" toml:"reconnect"`
}

// Parameters holds numeric and string runtime parameters.
type Parameters struct {
	URLLimit         int      `mapstructure:"url-limit" toml:"url-limit"`
	StatusChannels   []string `mapstructure:"status-channels" toml:"status-channels"`
	NickResponseStr  string   `mapstructure:"nick-response-str" toml:"nick-response-str"`
	ReconnectTimeout int      `mapstructure:"reconnect-timeout" toml:"reconnect-timeout"`
}

// HTTPConfig configures the retriever.
type HTTPConfig struct {
	TimeoutS           int     `mapstructure:"timeout-s" toml:"timeout-s"`
	MaxRedirections    int     `mapstructure:"max-redirections" toml:"max-redirections"`
	MaxRetries         int     `mapstructure:"max-retries" toml:"max-retries"`
	RetryDelayS        int     `mapstructure:"retry-delay-s" toml:"retry-delay-s"`
	AcceptLang         string  `mapstructure:"accept-lang" toml:"accept-lang"`
	UserAgent          string  `mapstructure:"user-agent" toml:"user-agent,omitempty"`
	RateLimitPerDomain float64 `mapstructure:"rate-limit-per-domain" toml:"rate-limit-per-domain"`
}

// DatabaseConfig selects the history backend.
type DatabaseConfig struct {
	Type string `mapstructure:"type" toml:"type"`
	Path string `mapstructure:"path" toml:"path,omitempty"`
	DSN  string `mapstructure:"dsn" toml:"dsn,omitempty"`
}

// PluginKey holds a plugin's credential.
type PluginKey struct {
	APIKey string `mapstructure:"api-key" toml:"api-key"`
}

// PluginsConfig holds credentials for every title plugin.
type PluginsConfig struct {
	YouTube PluginKey `mapstructure:"youtube" toml:"youtube"`
	Imgur   PluginKey `mapstructure:"imgur" toml:"imgur"`
	Vimeo   PluginKey `mapstructure:"vimeo" toml:"vimeo"`
}

// ConnectionConfig describes the IRC connection.
type ConnectionConfig struct {
	Nickname     string   `mapstructure:"nickname" toml:"nickname"`
	Username     string   `mapstructure:"username" toml:"username"`
	Realname     string   `mapstructure:"realname" toml:"realname"`
	NickPassword string   `mapstructure:"nick-password" toml:"nick-password"`
	Password     string   `mapstructure:"password" toml:"password"`
	Server       string   `mapstructure:"server" toml:"server"`
	Port         int      `mapstructure:"port" toml:"port"`
	UseTLS       bool     `mapstructure:"use-tls" toml:"use-tls"`
	Channels     []string `mapstructure:"channels" toml:"channels"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development" toml:"development"`
}

// Default returns a configuration populated with default values.
func Default() Config {
	return Config{
		Network: NetworkConfig{Name: "default", Enable: true},
		Params: Parameters{
			URLLimit:         10,
			StatusChannels:   []string{},
			ReconnectTimeout: 10,
		},
		HTTP: HTTPConfig{
			TimeoutS:        10,
			MaxRedirections: 10,
			MaxRetries:      3,
			RetryDelayS:     5,
			AcceptLang:      "en",
		},
		Database: DatabaseConfig{Type: DBInMemory},
		Connection: ConnectionConfig{
			Nickname: "urlbot",
			Username: "urlbot",
			Realname: "urlbot",
			Server:   "127.0.0.1",
			Port:     6667,
			Channels: []string{"#urlbot"},
		},
	}
}

// Load builds a Config from a TOML file plus URLBOT_* environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("URLBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	// arbitrary TOML files found while scanning a directory must not load
	if !v.InConfig("connection") {
		return Config{}, fmt.Errorf("%s: missing [connection] section", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("network.name", d.Network.Name)
	v.SetDefault("network.enable", d.Network.Enable)
	v.SetDefault("parameters.url-limit", d.Params.URLLimit)
	v.SetDefault("parameters.status-channels", d.Params.StatusChannels)
	v.SetDefault("parameters.nick-response-str", d.Params.NickResponseStr)
	v.SetDefault("parameters.reconnect-timeout", d.Params.ReconnectTimeout)
	v.SetDefault("http.timeout-s", d.HTTP.TimeoutS)
	v.SetDefault("http.max-redirections", d.HTTP.MaxRedirections)
	v.SetDefault("http.max-retries", d.HTTP.MaxRetries)
	v.SetDefault("http.retry-delay-s", d.HTTP.RetryDelayS)
	v.SetDefault("http.accept-lang", d.HTTP.AcceptLang)
	v.SetDefault("http.rate-limit-per-domain", d.HTTP.RateLimitPerDomain)
	v.SetDefault("database.type", d.Database.Type)
	v.SetDefault("connection.nickname", d.Connection.Nickname)
	v.SetDefault("connection.username", d.Connection.Username)
	v.SetDefault("connection.realname", d.Connection.Realname)
	v.SetDefault("connection.server", d.Connection.Server)
	v.SetDefault("connection.port", d.Connection.Port)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Network.Name) == "" {
		return fmt.Errorf("network.name must be set")
	}
	if c.Params.URLLimit <= 0 {
		return fmt.Errorf("parameters.url-limit must be > 0")
	}
	if c.Params.ReconnectTimeout < 0 {
		return fmt.Errorf("parameters.reconnect-timeout must be >= 0")
	}
	if c.HTTP.TimeoutS <= 0 {
		return fmt.Errorf("http.timeout-s must be > 0")
	}
	if c.HTTP.MaxRedirections < 0 {
		return fmt.Errorf("http.max-redirections must be >= 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max-retries must be >= 0")
	}
	if c.HTTP.RetryDelayS < 0 {
		return fmt.Errorf("http.retry-delay-s must be >= 0")
	}
	switch c.Database.Type {
	case DBInMemory, DBSqlite:
	case DBPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set when database.type is postgres")
		}
	default:
		return fmt.Errorf("database.type %q is not one of in-memory, sqlite, postgres", c.Database.Type)
	}
	if c.Connection.Nickname == "" {
		return fmt.Errorf("connection.nickname must be set")
	}
	return nil
}

// Timeout is the per-attempt HTTP timeout.
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutS) * time.Second
}

// RetryDelay is the pause between server-error retries.
func (h HTTPConfig) RetryDelay() time.Duration {
	return time.Duration(h.RetryDelayS) * time.Second
}

// ReconnectDelay is the back-off between connection attempts.
func (p Parameters) ReconnectDelay() time.Duration {
	return time.Duration(p.ReconnectTimeout) * time.Second
}

// IsStatusChannel reports whether name is one of the configured status channels.
func (p Parameters) IsStatusChannel(name string) bool {
	for _, c := range p.StatusChannels {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// Write serialises the configuration as TOML to path.
func (c Config) Write(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if _, err := EnsureParentDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// EnsureDefault writes a default configuration to path when nothing exists there.
// It reports whether a file was created.
func EnsureDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config: %w", err)
	}
	if err := Default().Write(path); err != nil {
		return false, err
	}
	return true, nil
}

// EnsureParentDir creates the parent directory of file when it is missing and
// reports whether it did.
func EnsureParentDir(file string) (bool, error) {
	dir := filepath.Dir(file)
	if dir == "." || dir == "" {
		return false, nil
	}
	if _, err := os.Stat(dir); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}
	return true, nil
}

// FindConfigsInDir returns loadable configuration files directly inside dir.
func FindConfigsInDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read config dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if _, err := Load(p); err != nil {
			continue
		}
		paths = append(paths, p)
		if len(paths) == maxConfigsInDir {
			break
		}
	}
	return paths, nil
}

// DefaultDir is the per-user configuration directory.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(base, "urlbot"), nil
}

// DatabasePath resolves where the history database lives. An empty result means
// the history store is kept in memory.
func (c Config) DatabasePath() (string, error) {
	if !c.Features.History || c.Database.Type != DBSqlite {
		return "", nil
	}
	if c.Database.Path != "" {
		return ExpandTilde(c.Database.Path), nil
	}
	dataDir, err := userDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "urlbot", fmt.Sprintf("history.%s.db", c.Network.Name)), nil
}

// ExpandTilde replaces a leading ~ with the user's home directory.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func userDataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve data dir: %w", err)
	}
	return filepath.Join(home, ".local", "share"), nil
}
