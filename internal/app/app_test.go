package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-as4-gateway/internal/config"
	"github.com/sirosfoundation/go-as4-gateway/internal/storage"
	"github.com/sirosfoundation/go-as4-gateway/pkg/pmode"
	"github.com/sirosfoundation/go-as4-gateway/pkg/transport"
)

const pmodeFile = "../../pkg/pmode/testdata/configuration.xml"

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, stderr bytes.Buffer
	cmd := RootCommand(&out, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "as4-gateway dev\n", out)
}

func TestValidatePMode(t *testing.T) {
	out, err := execute(t, "validate-pmode", pmodeFile)
	require.NoError(t, err)
	assert.Contains(t, out, "parties: 2")
	assert.Contains(t, out, "pull http://gateway.example/mpc/mpc1 from https://red.example/msh")

	bad := filepath.Join(t.TempDir(), "bad.xml")
	require.NoError(t, os.WriteFile(bad, []byte("<other/>"), 0o600))
	out, err = execute(t, "validate-pmode", bad)
	require.Error(t, err)
	assert.Contains(t, out, "The document is invalid!")

	_, err = execute(t, "validate-pmode", filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
}

func TestRootCommandRejectsBadConfig(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "version")
	assert.Error(t, err)

	_, err = execute(t, "--verbosity", "loud", "version")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"text", "info", "text", false},
		{"json", "debug", "json", false},
		{"default format", "warn", "", false},
		{"bad level", "chatty", "text", true},
		{"bad format", "info", "xml", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(&buf, tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			logger.Error("hello")
			assert.Contains(t, buf.String(), "hello")
		})
	}
}

func TestTransportConfig(t *testing.T) {
	c, err := transportConfig(config.TransportConfig{Timeout: 5 * time.Second, MinTLS: "1.3", UserAgent: "test"})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, uint16(transport.TLS13), c.MinTLSVersion)
	assert.Equal(t, "test", c.UserAgent)
	assert.Nil(t, c.RootCAs)

	c, err = transportConfig(config.TransportConfig{})
	require.NoError(t, err)
	assert.Equal(t, transport.DefaultHTTPSConfig().Timeout, c.Timeout)

	_, err = transportConfig(config.TransportConfig{MinTLS: "1.0"})
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(empty, []byte("not a certificate"), 0o600))
	_, err = transportConfig(config.TransportConfig{RootCAFile: empty})
	assert.Error(t, err)
}

func TestStorageConfig(t *testing.T) {
	var cfg config.StorageConfig
	cfg.Type = "mongodb"
	cfg.MongoDB.URI = "mongodb://localhost"
	cfg.MongoDB.Database = "gw"
	assert.Equal(t, storage.Config{Driver: "mongodb", URI: "mongodb://localhost", Database: "gw"}, storageConfig(cfg))

	cfg.Type = "postgres"
	cfg.Postgres.URL = "postgres://localhost/gw"
	assert.Equal(t, storage.Config{Driver: "postgres", URI: "postgres://localhost/gw"}, storageConfig(cfg))

	assert.Equal(t, storage.Config{Driver: "memory"}, storageConfig(config.StorageConfig{Type: "memory"}))
}

func TestBootstrapPMode(t *testing.T) {
	ctx := context.Background()
	repo := pmode.NewMemoryRepository(nil)
	cache := pmode.NewCache(repo, nil, discard())

	require.NoError(t, bootstrapPMode(ctx, repo, cache, "", discard()))
	exists, err := repo.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, bootstrapPMode(ctx, repo, cache, pmodeFile, discard()))
	resolver, err := cache.Resolver(ctx)
	require.NoError(t, err)
	assert.Equal(t, "blue_gw", resolver.Configuration().Party.Name)

	// An existing document wins over the file
	require.NoError(t, bootstrapPMode(ctx, repo, cache, filepath.Join(t.TempDir(), "missing.xml"), discard()))
}

func TestBuild(t *testing.T) {
	cfg := config.Default()
	cfg.PMode.File = pmodeFile
	cfg.Pull.Enabled = true
	cfg.Pull.PolicyDir = "../policy/testdata"

	c, err := build(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer c.store.Close(context.Background())

	require.NotNil(t, c.scheduler)
	n, err := c.scheduler.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, c.queue.Len())

	deps := c.serverDeps()
	assert.NotNil(t, deps.Queue)
	assert.NotNil(t, deps.Trigger)

	c.reload(context.Background(), discard())
}

func TestBuildWithoutPull(t *testing.T) {
	c, err := build(context.Background(), config.Default(), discard())
	require.NoError(t, err)
	defer c.store.Close(context.Background())

	assert.Nil(t, c.consumer)
	deps := c.serverDeps()
	assert.Nil(t, deps.Queue)
	assert.Nil(t, deps.Trigger)
}
