package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: "http",
			HTTPPort:  8080,
		},
		Sandbox: SandboxConfig{
			Backend:    "yaegi",
			TimeoutSec: 30,
		},
		Resolver: ResolverConfig{
			CacheDirName:      "scriptbox-packages",
			TargetFramework:   "net8.0",
			NetworkTimeoutSec: 30,
			MaxDepth:          10,
			Concurrency:       4,
			Source: SourceConfig{
				Kind: "http",
				URL:  "https://api.nuget.org/v3-flatcontainer/",
			},
		},
		Logging: LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		require.NoError(t, validConfig().validate())
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"InvalidServerTransport", func(c *Config) { c.Server.Transport = "invalid" }, "invalid server.transport"},
		{"InvalidHTTPPort", func(c *Config) { c.Server.HTTPPort = 70000 }, "invalid server.http_port"},
		{"UnsupportedBackend", func(c *Config) { c.Sandbox.Backend = "docker" }, "unsupported sandbox.backend"},
		{"InvalidSandboxTimeout", func(c *Config) { c.Sandbox.TimeoutSec = 0 }, "sandbox.timeout_sec must be positive"},
		{"InvalidNetworkTimeout", func(c *Config) { c.Resolver.NetworkTimeoutSec = -1 }, "resolver.network_timeout_sec"},
		{"InvalidMaxDepth", func(c *Config) { c.Resolver.MaxDepth = 0 }, "resolver.max_depth"},
		{"InvalidConcurrency", func(c *Config) { c.Resolver.Concurrency = 0 }, "resolver.concurrency"},
		{"EmptyCacheDirName", func(c *Config) { c.Resolver.CacheDirName = " " }, "resolver.cache_dir_name"},
		{"EmptyTargetFramework", func(c *Config) { c.Resolver.TargetFramework = "" }, "resolver.target_framework"},
		{"MissingFeedURL", func(c *Config) { c.Resolver.Source.URL = "" }, "resolver.source.url"},
		{"MissingBucket", func(c *Config) {
			c.Resolver.Source.Kind = "s3"
			c.Resolver.Source.S3.Endpoint = "localhost:9000"
		}, "resolver.source.s3.bucket"},
		{"InvalidSourceKind", func(c *Config) { c.Resolver.Source.Kind = "ftp" }, "invalid resolver.source.kind"},
		{"InvalidLoggingMode", func(c *Config) { c.Logging.Mode = "invalid_mode" }, "invalid logging.mode"},
		{"InvalidLogLevel", func(c *Config) { c.Logging.Level = "invalid_level" }, "invalid logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("ValidS3Source", func(t *testing.T) {
		cfg := validConfig()
		cfg.Resolver.Source = SourceConfig{
			Kind: "s3",
			S3:   S3Config{Endpoint: "localhost:9000", Bucket: "packages"},
		}
		require.NoError(t, cfg.validate())
	})
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cfg, err := New()
		require.NoError(t, err)
		assert.Equal(t, "stdio", cfg.Server.Transport)
		assert.Equal(t, 30*time.Second, cfg.GetTimeout())
		assert.Equal(t, "http", cfg.Resolver.Source.Kind)
		assert.Equal(t, 10, cfg.Resolver.MaxDepth)
		assert.Equal(t, []string{".dll", ".go"}, cfg.Resolver.ArtifactExtensions)
	})

	t.Run("DefaultListsShared", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cfg, err := New()
		require.NoError(t, err)
		assert.Equal(t, DefaultBaseImports, cfg.Sandbox.BaseImports)
		assert.Equal(t, DefaultAllowedPackages, cfg.Sandbox.AllowedPackages)
		assert.Equal(t, DefaultTargetFramework, cfg.Resolver.TargetFramework)
		assert.Equal(t, DefaultFallbackFrameworks, cfg.Resolver.FallbackFrameworks)
		assert.Equal(t, DefaultSkipExact, cfg.Resolver.Policy.SkipExact)
		assert.Equal(t, DefaultBuiltinPrefixes, cfg.Resolver.Policy.BuiltinPrefixes)

		cfg.Sandbox.BaseImports[0] = "os"
		assert.Equal(t, "fmt", DefaultBaseImports[0])
	})

	t.Run("MissingExplicitFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("FromFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
sandbox:
  timeout_sec: 5
resolver:
  max_depth: 3
  source:
    url: https://feed.example.com/v3/
logging:
  mode: development
  level: debug
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "stdio", cfg.Server.Transport)
		assert.Equal(t, "yaegi", cfg.Sandbox.Backend)
		assert.Equal(t, 5*time.Second, cfg.GetTimeout())
		assert.Equal(t, 3, cfg.Resolver.MaxDepth)
		assert.Equal(t, "https://feed.example.com/v3/", cfg.Resolver.Source.URL)
		assert.Equal(t, "net8.0", cfg.Resolver.TargetFramework)
		assert.Equal(t, []string{"netstandard2.1", "netstandard2.0"}, cfg.Resolver.FallbackFrameworks)
		assert.Equal(t, "8.0.0", cfg.Resolver.Policy.ExtensionsVersion)
		assert.Equal(t, "development", cfg.Logging.Mode)
	})

	t.Run("EnvironmentOverride", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sandbox:\n  timeout_sec: 5\n"), 0o600))
		t.Setenv("SCRIPTBOX_SANDBOX_TIMEOUT_SEC", "12")
		t.Setenv("SCRIPTBOX_RESOLVER_NETWORK_TIMEOUT_SEC", "7")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 12*time.Second, cfg.GetTimeout())
		assert.Equal(t, 7*time.Second, cfg.GetNetworkTimeout())
	})

	t.Run("InvalidFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logging:\n  mode: loud\n"), 0o600))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config validation error")
	})
}

func TestDump(t *testing.T) {
	cfg := validConfig()
	cfg.Resolver.Source.S3 = S3Config{AccessKey: "access", SecretKey: "super-secret"}

	out, err := cfg.Dump()
	require.NoError(t, err)
	assert.Contains(t, string(out), "transport: http")
	assert.Contains(t, string(out), "access_key: access")
	assert.NotContains(t, string(out), "super-secret")
}
