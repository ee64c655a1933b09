package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr        string  `yaml:"addr"`
		UploadDir   string  `yaml:"upload_dir"`
		MaxUploadMB int64   `yaml:"max_upload_mb"`
		RateLimit   float64 `yaml:"rate_limit"`
		Burst       int     `yaml:"burst"`
	} `yaml:"server"`

	Tools struct {
		PythonBin        string `yaml:"python_bin"`
		ConverterScript  string `yaml:"converter_script"`
		ClassifierScript string `yaml:"classifier_script"`
		TimeoutSeconds   int    `yaml:"timeout_seconds"`
		NumPoints        int    `yaml:"num_points"`
		OutputPoints     bool   `yaml:"output_points"`
	} `yaml:"tools"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
	} `yaml:"database"`

	Cache struct {
		Addr       string `yaml:"addr"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"cache"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/meshlens/config.yaml"),
			"/etc/meshlens/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.UploadDir == "" {
		config.Server.UploadDir = "uploads"
	}
	if config.Server.MaxUploadMB == 0 {
		config.Server.MaxUploadMB = 64
	}
	if config.Server.RateLimit == 0 {
		config.Server.RateLimit = 10.0
	}
	if config.Server.Burst == 0 {
		config.Server.Burst = 20
	}

	if config.Tools.PythonBin == "" {
		config.Tools.PythonBin = "python3"
	}
	if config.Tools.ConverterScript == "" {
		config.Tools.ConverterScript = "python_scripts/step_to_off.py"
	}
	if config.Tools.ClassifierScript == "" {
		config.Tools.ClassifierScript = "python_scripts/inference.py"
	}
	if config.Tools.TimeoutSeconds == 0 {
		config.Tools.TimeoutSeconds = 120
	}
	if config.Tools.NumPoints == 0 {
		config.Tools.NumPoints = 1024
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "classifications"
	}

	if config.Cache.TTLSeconds == 0 {
		config.Cache.TTLSeconds = 3600
	}
}

func mergeWithEnv(config *Config) {
	if addr := os.Getenv("MESHLENS_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
	if dir := os.Getenv("MESHLENS_UPLOAD_DIR"); dir != "" {
		config.Server.UploadDir = dir
	}
	if bin := os.Getenv("MESHLENS_PYTHON_BIN"); bin != "" {
		config.Tools.PythonBin = bin
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		config.Cache.Addr = redisAddr
	}
}
