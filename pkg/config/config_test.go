package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
server:
  addr: ":9090"
  upload_dir: "/var/lib/meshlens/uploads"
  max_upload_mb: 32
  rate_limit: 5.0
  burst: 10

tools:
  python_bin: "/usr/bin/python3"
  converter_script: "scripts/step_to_off.py"
  classifier_script: "scripts/inference.py"
  timeout_seconds: 60
  num_points: 2048
  output_points: true

database:
  url: "postgres://localhost:5432/meshlens"
  table_name: "test_classifications"

cache:
  addr: "localhost:6379"
  ttl_seconds: 600
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, ":9090", config.Server.Addr)
	assert.Equal(t, "/var/lib/meshlens/uploads", config.Server.UploadDir)
	assert.Equal(t, int64(32), config.Server.MaxUploadMB)
	assert.Equal(t, "/usr/bin/python3", config.Tools.PythonBin)
	assert.Equal(t, 60, config.Tools.TimeoutSeconds)
	assert.Equal(t, 2048, config.Tools.NumPoints)
	assert.True(t, config.Tools.OutputPoints)
	assert.Equal(t, "postgres://localhost:5432/meshlens", config.Database.URL)
	assert.Equal(t, "test_classifications", config.Database.TableName)
	assert.Equal(t, 600, config.Cache.TTLSeconds)
}

func TestDefaults(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	assert.Equal(t, ":8080", config.Server.Addr)
	assert.Equal(t, "uploads", config.Server.UploadDir)
	assert.Equal(t, "python3", config.Tools.PythonBin)
	assert.Equal(t, 120, config.Tools.TimeoutSeconds)
	assert.Equal(t, 1024, config.Tools.NumPoints)
	assert.Equal(t, "classifications", config.Database.TableName)
}

func TestConfigValidation(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		config := &Config{}
		applyDefaults(config)
		assert.Empty(t, config.Validate())
	})

	t.Run("invalid config", func(t *testing.T) {
		config := &Config{}
		applyDefaults(config)
		config.Server.MaxUploadMB = -1
		config.Server.RateLimit = -2
		config.Tools.TimeoutSeconds = 0
		config.Tools.NumPoints = 0
		config.Tools.ClassifierScript = ""

		errors := config.Validate()
		assert.Len(t, errors, 5)

		messages := make([]string, len(errors))
		for i, e := range errors {
			messages[i] = e.Error()
		}
		assert.Contains(t, messages, "server.max_upload_mb: max_upload_mb must be positive")
		assert.Contains(t, messages, "server.rate_limit: rate_limit must be positive")
		assert.Contains(t, messages, "tools.timeout_seconds: timeout_seconds must be positive")
		assert.Contains(t, messages, "tools.num_points: num_points must be between 1 and 65536")
		assert.Contains(t, messages, "tools.classifier_script: classifier script path is required")
	})
}

func TestEnvironmentOverrides(t *testing.T) {
	// Set environment variables
	os.Setenv("MESHLENS_ADDR", ":7070")
	os.Setenv("DATABASE_URL", "postgres://env-db:5432/meshlens")
	os.Setenv("REDIS_ADDR", "env-redis:6379")
	defer func() {
		os.Unsetenv("MESHLENS_ADDR")
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("REDIS_ADDR")
	}()

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, ":7070", config.Server.Addr)
	assert.Equal(t, "postgres://env-db:5432/meshlens", config.Database.URL)
	assert.Equal(t, "env-redis:6379", config.Cache.Addr)
}
