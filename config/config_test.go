package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	// Packages
	config "github.com/mutablelogic/go-collect/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Server.Listen)
	assert.Equal(t, 3, c.Upload.Concurrency)
	assert.Equal(t, 3, c.Upload.Retries)
	assert.Equal(t, 5*time.Minute, c.Client.Timeout)

	plan, exists := c.Plan("free")
	require.True(t, exists)
	assert.Equal(t, "free", plan.Key)
	assert.Equal(t, int64(100<<20), plan.MaxFileSize)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collect.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen: ":9090"
  workspaces:
    - url: "mem://ws"
      plan: "free"
upload:
  concurrency: 5
  retries: 1
  delays: ["1s", "5s"]
plans:
  free:
    max_file_size: 1024
    limit_bytes: 4096
    max_files_per_upload: 2
`), 0o644))

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.Server.Listen)
	assert.Equal(t, 5, c.Upload.Concurrency)
	assert.Equal(t, 1, c.Upload.Retries)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second}, c.Upload.Delays)

	require.Len(t, c.Server.Workspaces, 1)
	assert.Equal(t, "mem://ws", c.Server.Workspaces[0].URL)

	plan, exists := c.Plan("free")
	require.True(t, exists)
	assert.Equal(t, int64(1024), plan.MaxFileSize)
	assert.Equal(t, int64(4096), plan.LimitBytes)
	assert.Equal(t, 2, plan.MaxFilesPerUpload)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("COLLECT_SERVER_LISTEN", ":7070")
	t.Setenv("COLLECT_UPLOAD_CONCURRENCY", "7")

	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", c.Server.Listen)
	assert.Equal(t, 7, c.Upload.Concurrency)
}

func TestValidate(t *testing.T) {
	c := config.New()
	c.Upload.Concurrency = 0
	assert.Error(t, c.Validate())

	c = config.New()
	c.Server.Workspaces = []config.WorkspaceConfig{{URL: "mem://ws", Plan: "gold"}}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown plan")
}

func TestUnknownPlan(t *testing.T) {
	c := config.New()
	_, exists := c.Plan("gold")
	assert.False(t, exists)
}
