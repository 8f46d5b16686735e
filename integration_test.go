package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/scriptbox/config"
	"github.com/isdmx/scriptbox/engine"
	"github.com/isdmx/scriptbox/logger"
	"github.com/isdmx/scriptbox/mcpserver"
	"github.com/isdmx/scriptbox/nuget"
	"github.com/isdmx/scriptbox/nuget/nugettest"
	"github.com/isdmx/scriptbox/pkgcache"
	"github.com/isdmx/scriptbox/resolver"
	"github.com/isdmx/scriptbox/sandbox"
)

var feedPackages = []nugettest.Package{
	{
		ID:      "Greeter",
		Version: "1.0.0",
		Groups: []nugettest.Group{{
			Framework:    "net8.0",
			Dependencies: map[string]string{"Formatting": "[2.0.0, )", "System.Runtime": "4.3.0"},
		}},
		Files: map[string]string{
			"lib/net8.0/Greeter.go": "package main\n\nfunc Greet(name string) string {\n\treturn \"Hello, \" + name\n}\n",
		},
	},
	{
		ID:      "Formatting",
		Version: "2.0.0",
		Files: map[string]string{
			"lib/netstandard2.0/Formatting.go": "package main\n\nfunc Shout(s string) string {\n\treturn s + \"!\"\n}\n",
		},
	},
	{
		ID:      "NativeOnly",
		Version: "1.0.0",
		Files: map[string]string{
			"lib/net462/NativeOnly.dll": "MZ",
		},
	},
}

type harness struct {
	cfg    *config.Config
	engine *engine.Engine
	hits   func(path string) int
}

// newHarness wires the production constructors against a local feed.
func newHarness(t *testing.T) *harness {
	t.Helper()

	feed, hits := nugettest.NewFeed(feedPackages...)
	t.Cleanup(feed.Close)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf(`
resolver:
  temp_root: %s
  network_timeout_sec: 5
  source:
    kind: http
    url: %s
logging:
  mode: development
  level: debug
`, t.TempDir(), feed.URL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	source, err := nuget.NewSource(log, cfg)
	require.NoError(t, err)
	store, err := pkgcache.NewStoreFromConfig(log, cfg)
	require.NoError(t, err)
	ev, err := sandbox.NewEvaluator(log, cfg)
	require.NoError(t, err)

	res := resolver.NewFromConfig(log, cfg, source, store)
	return &harness{
		cfg:    cfg,
		engine: engine.NewFromConfig(log, cfg, res, ev),
		hits:   hits,
	}
}

func TestIntegrationConfigLogger(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Nil(t, cfg)

	testLogger, err := logger.New("development", "debug", logger.WithOutput(filepath.Join(t.TempDir(), "app.log")))
	require.NoError(t, err)
	testLogger.Info("integration test started", zap.String("component", "integration"))
	_ = testLogger.Sync()
}

func TestIntegrationScriptPipeline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t.Run("ExpressionResult", func(t *testing.T) {
		resp := h.engine.Run(ctx, engine.Request{Code: "2 + 2"})
		assert.Equal(t, "Result: 4", resp.Text)
		assert.False(t, resp.Failed)
	})

	t.Run("Timeout", func(t *testing.T) {
		resp := h.engine.Run(ctx, engine.Request{Code: "time.Sleep(3 * time.Second)\n\"x\"", TimeoutSeconds: 1})
		assert.Equal(t, "Error: Script execution timed out after 1 seconds.", resp.Text)
		assert.True(t, resp.Failed)
	})

	t.Run("CompileError", func(t *testing.T) {
		resp := h.engine.Run(ctx, engine.Request{Code: "var y = ;"})
		assert.True(t, strings.HasPrefix(resp.Text, "Compilation Error(s):\n  Line 1, "), resp.Text)
		assert.True(t, resp.Failed)
	})

	t.Run("RuntimeError", func(t *testing.T) {
		resp := h.engine.Run(ctx, engine.Request{Code: "panic(errors.New(\"m\"))"})
		assert.True(t, strings.HasPrefix(resp.Text, "Runtime Error: *errors.errorString\nMessage: m"), resp.Text)
		assert.True(t, resp.Failed)
	})

	t.Run("NoOutput", func(t *testing.T) {
		resp := h.engine.Run(ctx, engine.Request{Code: "x := 1\n_ = x"})
		assert.Equal(t, "Script executed successfully with no output.", resp.Text)
	})

	t.Run("MissingInput", func(t *testing.T) {
		assert.Equal(t, engine.MissingInput, h.engine.Run(ctx, engine.Request{}).Text)
		assert.Equal(t, engine.AmbiguousInput, h.engine.Run(ctx, engine.Request{Code: "1", FilePath: "a.go"}).Text)
	})
}

func TestIntegrationPackages(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	script := "#r \"nuget: Greeter, 1.0.0\"\nShout(Greet(\"world\"))"
	nupkg := "/greeter/1.0.0/greeter.1.0.0.nupkg"

	t.Run("TransitivePackages", func(t *testing.T) {
		resp := h.engine.Run(ctx, engine.Request{Code: script})
		assert.Equal(t, "Result: Hello, world!", resp.Text)
		assert.False(t, resp.Failed)

		assert.Equal(t, 1, h.hits(nupkg))
		assert.Equal(t, 1, h.hits("/formatting/2.0.0/formatting.2.0.0.nupkg"))
		assert.Zero(t, h.hits("/system.runtime/4.3.0/system.runtime.4.3.0.nupkg"))

		dir := filepath.Join(h.cfg.Resolver.TempRoot, h.cfg.Resolver.CacheDirName, "Greeter.1.0.0", "lib", "net8.0")
		assert.FileExists(t, filepath.Join(dir, "Greeter.go"))
	})

	t.Run("SecondRequestUsesCache", func(t *testing.T) {
		resp := h.engine.Run(ctx, engine.Request{Code: script})
		assert.Equal(t, "Result: Hello, world!", resp.Text)
		assert.Equal(t, 1, h.hits(nupkg))
	})

	t.Run("FromFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "script.go")
		require.NoError(t, os.WriteFile(path, []byte(script), 0o600))

		resp := h.engine.Run(ctx, engine.Request{FilePath: path})
		assert.Equal(t, "Result: Hello, world!", resp.Text)
	})

	t.Run("MalformedDirective", func(t *testing.T) {
		resp := h.engine.Run(ctx, engine.Request{Code: "#r \"nuget: MissingVersion\"\n1"})
		assert.True(t, strings.HasPrefix(resp.Text, "NuGet Package Resolution Error(s):"))
		assert.Contains(t, resp.Text, `#r "nuget: PackageName, Version"`)
		assert.True(t, resp.Failed)
	})

	t.Run("PathLikeDirectiveNeverResolves", func(t *testing.T) {
		resp := h.engine.Run(ctx, engine.Request{Code: "#r \"nuget: ../../escape, 1.0.0\"\n#r \"nuget: Formatting, 2.0.0\"\n1"})
		assert.True(t, strings.HasPrefix(resp.Text, "NuGet Package Resolution Error(s):\n  - Invalid NuGet directive syntax on line 1"), resp.Text)
		assert.NotContains(t, resp.Text, "line 2")
		assert.NoDirExists(t, filepath.Join(filepath.Dir(h.cfg.Resolver.TempRoot), "escape.1.0.0"))
	})

	t.Run("UnknownPackage", func(t *testing.T) {
		resp := h.engine.Run(ctx, engine.Request{Code: "#r \"nuget: DoesNotExist, 9.9.9\"\n1"})
		assert.True(t, strings.HasPrefix(resp.Text, "NuGet Package Resolution Error(s):\n  - DoesNotExist 9.9.9: NotFound"), resp.Text)
	})

	t.Run("IncompatiblePlatform", func(t *testing.T) {
		resp := h.engine.Run(ctx, engine.Request{Code: "#r \"nuget: NativeOnly, 1.0.0\"\n1"})
		assert.Contains(t, resp.Text, "NativeOnly 1.0.0: IncompatiblePlatform")
	})
}

func TestIntegrationMCPServer(t *testing.T) {
	h := newHarness(t)
	server := mcpserver.New(h.cfg, zaptest.NewLogger(t), h.engine)

	call := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"execute_script","arguments":{"code":"2 + 2"}}}`
	msg := server.GetMCPServer().HandleMessage(context.Background(), json.RawMessage(call))
	require.NotNil(t, msg)

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Result: 4")
}
