package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, yaml string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	// Nonexistent explicit path still yields a full default config.
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "badger", cfg.Store.Type)
	assert.Equal(t, "/var/lib/treefs/metadata", cfg.Store.Badger["db_path"])
	assert.Equal(t, "none", cfg.Content.Type)
	assert.Empty(t, cfg.Filesystems)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
  output: stderr
server:
  shutdown_timeout: 5s
metrics:
  enabled: true
  listen_address: ":9999"
store:
  type: memory
content:
  type: filesystem
  filesystem:
    path: /tmp/treefs-test-content
filesystems:
  - name: tank
    export: true
    export_options: rw
  - name: scratch
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized to uppercase")
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9999", cfg.Metrics.ListenAddress)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "filesystem", cfg.Content.Type)
	assert.Equal(t, "/tmp/treefs-test-content", cfg.Content.Filesystem["path"])

	require.Len(t, cfg.Filesystems, 2)
	assert.Equal(t, "tank", cfg.Filesystems[0].Name)
	assert.True(t, cfg.Filesystems[0].Export)
	assert.Equal(t, "rw", cfg.Filesystems[0].ExportOptions)
	assert.False(t, cfg.Filesystems[1].Export)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("TREEFS_LOGGING_LEVEL", "ERROR")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ERROR", cfg.Logging.Level)
}

func TestLoadInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"bad log level": `
logging:
  level: verbose
`,
		"bad store type": `
store:
  type: etcd
`,
		"duplicate filesystems": `
filesystems:
  - name: tank
  - name: tank
`,
		"invalid filesystem name": `
filesystems:
  - name: "a/b"
`,
		"options without export": `
filesystems:
  - name: tank
    export_options: rw
`,
	}

	for label, yaml := range cases {
		t.Run(label, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, yaml))
			assert.Error(t, err)
		})
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	assert.NoError(t, Validate(cfg))
}
