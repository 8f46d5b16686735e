package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. SCRIPTBOX_RESOLVER_NETWORK_TIMEOUT_SEC.
const EnvPrefix = "SCRIPTBOX"

// Defaults shared with the packages built from the configuration.
const (
	DefaultTargetFramework   = "net8.0"
	DefaultExtensionsVersion = "8.0.0"
)

// Default lists. Callers must copy before modifying them.
var (
	DefaultBaseImports     = []string{"fmt", "strings", "strconv", "math", "time", "sort", "errors"}
	DefaultAllowedPackages = []string{
		"bytes", "encoding/base64", "encoding/hex", "encoding/json", "errors", "fmt", "math",
		"math/big", "math/rand", "regexp", "sort", "strconv", "strings", "time", "unicode",
		"unicode/utf8",
	}

	DefaultFallbackFrameworks = []string{"netstandard2.1", "netstandard2.0"}
	DefaultArtifactExtensions = []string{".dll", ".go"}

	DefaultAlwaysResolvePrefixes = []string{"Microsoft.Extensions."}
	DefaultSkipExact             = []string{
		"NETStandard.Library", "Microsoft.CSharp", "Microsoft.NETCore.App", "Microsoft.NETCore.Platforms",
		"Microsoft.NETCore.Targets", "Microsoft.Win32.Primitives",
	}
	DefaultSkipPrefixes    = []string{"System.", "Microsoft.NETCore.", "Microsoft.Win32.", "runtime.", "Microsoft.AspNetCore.App"}
	DefaultBuiltinPrefixes = []string{"System.", "Microsoft.", "runtime.", "NETStandard."}
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Sandbox  SandboxConfig  `mapstructure:"sandbox" yaml:"sandbox"`
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport" yaml:"transport"`
	HTTPPort  int    `mapstructure:"http_port" yaml:"http_port"`
}

// SandboxConfig holds script execution configuration
type SandboxConfig struct {
	Backend         string   `mapstructure:"backend" yaml:"backend"`
	TimeoutSec      int      `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	AllowedRoot     string   `mapstructure:"allowed_root" yaml:"allowed_root"`
	BaseImports     []string `mapstructure:"base_imports" yaml:"base_imports"`
	AllowedPackages []string `mapstructure:"allowed_packages" yaml:"allowed_packages"`
}

// ResolverConfig holds package resolution configuration
type ResolverConfig struct {
	CacheDirName       string       `mapstructure:"cache_dir_name" yaml:"cache_dir_name"`
	TempRoot           string       `mapstructure:"temp_root" yaml:"temp_root"`
	TargetFramework    string       `mapstructure:"target_framework" yaml:"target_framework"`
	FallbackFrameworks []string     `mapstructure:"fallback_frameworks" yaml:"fallback_frameworks"`
	NetworkTimeoutSec  int          `mapstructure:"network_timeout_sec" yaml:"network_timeout_sec"`
	MaxDepth           int          `mapstructure:"max_depth" yaml:"max_depth"`
	Concurrency        int          `mapstructure:"concurrency" yaml:"concurrency"`
	ArtifactExtensions []string     `mapstructure:"artifact_extensions" yaml:"artifact_extensions"`
	IndexCacheSize     int          `mapstructure:"index_cache_size" yaml:"index_cache_size"`
	MaxPackageSizeMB   int          `mapstructure:"max_package_size_mb" yaml:"max_package_size_mb"`
	WatchCache         bool         `mapstructure:"watch_cache" yaml:"watch_cache"`
	Policy             PolicyConfig `mapstructure:"policy" yaml:"policy"`
	Source             SourceConfig `mapstructure:"source" yaml:"source"`
}

// PolicyConfig holds the dependency skip/allow lists
type PolicyConfig struct {
	AlwaysResolvePrefixes []string `mapstructure:"always_resolve_prefixes" yaml:"always_resolve_prefixes"`
	ExtensionsVersion     string   `mapstructure:"extensions_version" yaml:"extensions_version"`
	SkipExact             []string `mapstructure:"skip_exact" yaml:"skip_exact"`
	SkipPrefixes          []string `mapstructure:"skip_prefixes" yaml:"skip_prefixes"`
	BuiltinPrefixes       []string `mapstructure:"builtin_prefixes" yaml:"builtin_prefixes"`
}

// SourceConfig holds the package feed configuration
type SourceConfig struct {
	Kind string   `mapstructure:"kind" yaml:"kind"`
	URL  string   `mapstructure:"url" yaml:"url"`
	S3   S3Config `mapstructure:"s3" yaml:"s3"`
}

// S3Config holds the package mirror bucket configuration
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Region    string `mapstructure:"region" yaml:"region"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"-"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode   string `mapstructure:"mode" yaml:"mode"`
	Level  string `mapstructure:"level" yaml:"level"`
	Output string `mapstructure:"output" yaml:"output"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	return Load("")
}

// Load reads configuration from path, or from config.yaml in the usual
// locations when path is empty.
func Load(path string) (*Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.http_port", 8080)

	v.SetDefault("sandbox.backend", "yaegi")
	v.SetDefault("sandbox.timeout_sec", 30)
	v.SetDefault("sandbox.allowed_root", "")
	v.SetDefault("sandbox.base_imports", clone(DefaultBaseImports))
	v.SetDefault("sandbox.allowed_packages", clone(DefaultAllowedPackages))

	v.SetDefault("resolver.cache_dir_name", "scriptbox-packages")
	v.SetDefault("resolver.temp_root", "")
	v.SetDefault("resolver.target_framework", DefaultTargetFramework)
	v.SetDefault("resolver.fallback_frameworks", clone(DefaultFallbackFrameworks))
	v.SetDefault("resolver.network_timeout_sec", 30)
	v.SetDefault("resolver.max_depth", 10)
	v.SetDefault("resolver.concurrency", 4)
	v.SetDefault("resolver.artifact_extensions", clone(DefaultArtifactExtensions))
	v.SetDefault("resolver.index_cache_size", 256)
	v.SetDefault("resolver.max_package_size_mb", 200)
	v.SetDefault("resolver.watch_cache", true)

	v.SetDefault("resolver.policy.always_resolve_prefixes", clone(DefaultAlwaysResolvePrefixes))
	v.SetDefault("resolver.policy.extensions_version", DefaultExtensionsVersion)
	v.SetDefault("resolver.policy.skip_exact", clone(DefaultSkipExact))
	v.SetDefault("resolver.policy.skip_prefixes", clone(DefaultSkipPrefixes))
	v.SetDefault("resolver.policy.builtin_prefixes", clone(DefaultBuiltinPrefixes))

	v.SetDefault("resolver.source.kind", "http")
	v.SetDefault("resolver.source.url", "https://api.nuget.org/v3-flatcontainer/")
	v.SetDefault("resolver.source.s3.endpoint", "")
	v.SetDefault("resolver.source.s3.region", "us-east-1")
	v.SetDefault("resolver.source.s3.access_key", "")
	v.SetDefault("resolver.source.s3.secret_key", "")
	v.SetDefault("resolver.source.s3.bucket", "")
	v.SetDefault("resolver.source.s3.use_ssl", true)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "stderr")
}

func clone(values []string) []string {
	return append([]string(nil), values...)
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Server.Transport == "http" && (c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535) {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	if c.Sandbox.Backend != "yaegi" {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Resolver.NetworkTimeoutSec <= 0 {
		return fmt.Errorf("resolver.network_timeout_sec must be positive, got: %d", c.Resolver.NetworkTimeoutSec)
	}

	if c.Resolver.MaxDepth <= 0 {
		return fmt.Errorf("resolver.max_depth must be positive, got: %d", c.Resolver.MaxDepth)
	}

	if c.Resolver.Concurrency <= 0 {
		return fmt.Errorf("resolver.concurrency must be positive, got: %d", c.Resolver.Concurrency)
	}

	if strings.TrimSpace(c.Resolver.CacheDirName) == "" {
		return fmt.Errorf("resolver.cache_dir_name must not be empty")
	}

	if strings.TrimSpace(c.Resolver.TargetFramework) == "" {
		return fmt.Errorf("resolver.target_framework must not be empty")
	}

	switch c.Resolver.Source.Kind {
	case "http":
		if strings.TrimSpace(c.Resolver.Source.URL) == "" {
			return fmt.Errorf("resolver.source.url must be set for the http source")
		}
	case "s3":
		if c.Resolver.Source.S3.Endpoint == "" || c.Resolver.Source.S3.Bucket == "" {
			return fmt.Errorf("resolver.source.s3.endpoint and resolver.source.s3.bucket must be set for the s3 source")
		}
	default:
		return fmt.Errorf("invalid resolver.source.kind: %s, must be 'http' or 's3'", c.Resolver.Source.Kind)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// GetTimeout returns the default script execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// GetNetworkTimeout returns the bound applied to each network operation
func (c *Config) GetNetworkTimeout() time.Duration {
	return time.Duration(c.Resolver.NetworkTimeoutSec) * time.Second
}

// Dump renders the effective configuration as YAML. Secrets are omitted.
func (c *Config) Dump() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("error marshaling config: %w", err)
	}
	return out, nil
}
