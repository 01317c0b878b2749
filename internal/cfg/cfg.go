package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"cycle-dashboard/internal/common"
	"cycle-dashboard/internal/features"
	"cycle-dashboard/internal/ml"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	HTTPAddr         string
	LogLevel         string
	LogFile          string
	LogMaxSizeMB     int
	LogMaxBackups    int
	LogMaxAgeDays    int
	PythonPath       string
	ORTLibrary       string
	InferenceTimeout time.Duration
	CacheSize        int
	CacheTTL         time.Duration
	Models           map[string]ModelConfig
	Advisory         AdvisorySettings
}

// ModelConfig selects the backend and artifact for one purpose. Fields
// overrides the default feature schema for that purpose.
type ModelConfig struct {
	Backend string           `yaml:"backend"`
	Path    string           `yaml:"path"`
	Fields  []features.Field `yaml:"fields"`
}

type AdvisorySettings struct {
	Provider          string
	APIKey            string
	Model             string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
}

type ConfigFile struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"maxSizeMB"`
		MaxBackups int    `yaml:"maxBackups"`
		MaxAgeDays int    `yaml:"maxAgeDays"`
	} `yaml:"logging"`

	ML struct {
		PythonPath       string                 `yaml:"pythonPath"`
		ONNXRuntimeLib   string                 `yaml:"onnxRuntimeLib"`
		InferenceTimeout string                 `yaml:"inferenceTimeout"`
		CacheSize        *int                   `yaml:"cacheSize"`
		CacheTTL         string                 `yaml:"cacheTTL"`
		Models           map[string]ModelConfig `yaml:"models"`
	} `yaml:"ml"`

	Advisory struct {
		Provider          string `yaml:"provider"`
		APIKey            string `yaml:"apiKey"`
		Model             string `yaml:"model"`
		BaseURL           string `yaml:"baseURL"`
		Timeout           string `yaml:"timeout"`
		RequestsPerMinute int    `yaml:"requestsPerMinute"`
	} `yaml:"advisory"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Parse durations
	inferenceTimeout, err := time.ParseDuration(config.ML.InferenceTimeout)
	if err != nil {
		inferenceTimeout = 5 * time.Second
	}

	cacheTTL, err := time.ParseDuration(config.ML.CacheTTL)
	if err != nil {
		cacheTTL = 10 * time.Minute
	}

	advisoryTimeout, err := time.ParseDuration(config.Advisory.Timeout)
	if err != nil {
		advisoryTimeout = 30 * time.Second
	}

	cacheSize := common.DefaultCacheSize
	if config.ML.CacheSize != nil {
		cacheSize = *config.ML.CacheSize
	}

	models := defaultModels()
	for purpose, mc := range config.ML.Models {
		models[purpose] = mc
	}
	applyModelEnv(models)

	provider := getEnvOrDefault(common.EnvAdvisoryProvider, orString(config.Advisory.Provider, common.DefaultAdvisoryProvider))

	settings := Settings{
		HTTPAddr:         getEnvOrDefault(common.EnvHTTPAddr, orString(config.Server.Addr, common.DefaultHTTPAddr)),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, orString(config.Logging.Level, common.DefaultLogLevel)),
		LogFile:          getEnvOrDefault(common.EnvLogFile, config.Logging.File),
		LogMaxSizeMB:     config.Logging.MaxSizeMB,
		LogMaxBackups:    config.Logging.MaxBackups,
		LogMaxAgeDays:    config.Logging.MaxAgeDays,
		PythonPath:       getEnvOrDefault(common.EnvPythonPath, config.ML.PythonPath),
		ORTLibrary:       getEnvOrDefault(common.EnvORTLibrary, config.ML.ONNXRuntimeLib),
		InferenceTimeout: getDurationOrDefault(common.EnvInferenceTimeout, inferenceTimeout),
		CacheSize:        getIntOrDefault(common.EnvCacheSize, cacheSize),
		CacheTTL:         getDurationOrDefault(common.EnvCacheTTL, cacheTTL),
		Models:           models,
		Advisory: AdvisorySettings{
			Provider:          provider,
			APIKey:            advisoryKey(provider, config.Advisory.APIKey),
			Model:             getEnvOrDefault(common.EnvAdvisoryModel, config.Advisory.Model),
			BaseURL:           getEnvOrDefault(common.EnvAdvisoryBaseURL, config.Advisory.BaseURL),
			Timeout:           getDurationOrDefault(common.EnvAdvisoryTimeout, advisoryTimeout),
			RequestsPerMinute: getIntFromEnvOrConfig(common.EnvAdvisoryRPM, config.Advisory.RequestsPerMinute, common.DefaultAdvisoryRPM),
		},
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	models := defaultModels()
	applyModelEnv(models)

	provider := getEnvOrDefault(common.EnvAdvisoryProvider, common.DefaultAdvisoryProvider)

	settings := Settings{
		HTTPAddr:         getEnvOrDefault(common.EnvHTTPAddr, common.DefaultHTTPAddr),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFile:          os.Getenv(common.EnvLogFile), // optional
		PythonPath:       os.Getenv(common.EnvPythonPath),
		ORTLibrary:       os.Getenv(common.EnvORTLibrary),
		InferenceTimeout: getDurationOrDefault(common.EnvInferenceTimeout, 5*time.Second),
		CacheSize:        getIntOrDefault(common.EnvCacheSize, common.DefaultCacheSize),
		CacheTTL:         getDurationOrDefault(common.EnvCacheTTL, 10*time.Minute),
		Models:           models,
		Advisory: AdvisorySettings{
			Provider:          provider,
			APIKey:            advisoryKey(provider, ""),
			Model:             os.Getenv(common.EnvAdvisoryModel),
			BaseURL:           os.Getenv(common.EnvAdvisoryBaseURL),
			Timeout:           getDurationOrDefault(common.EnvAdvisoryTimeout, 30*time.Second),
			RequestsPerMinute: getIntOrDefault(common.EnvAdvisoryRPM, common.DefaultAdvisoryRPM),
		},
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Schema returns the feature schema for purpose: the configured fields when
// present, otherwise the default for the configured backend.
func (s *Settings) Schema(purpose string) features.Schema {
	mc := s.Models[purpose]
	if len(mc.Fields) > 0 {
		fields := make([]features.Field, len(mc.Fields))
		for i, f := range mc.Fields {
			if f.Kind == "" {
				f.Kind = features.KindNumber
			}
			fields[i] = f
		}
		return features.Schema{Fields: fields}
	}
	if mc.Backend == ml.BackendRule {
		return features.RuleSchema()
	}
	return features.DefaultSchema()
}

// ModelSpec returns the loader spec for purpose.
func (s *Settings) ModelSpec(purpose string) ml.ModelSpec {
	mc := s.Models[purpose]
	return ml.ModelSpec{Name: purpose, Backend: mc.Backend, Path: mc.Path}
}

func defaultModels() map[string]ModelConfig {
	return map[string]ModelConfig{
		common.PurposeFertility: {
			Backend: common.DefaultFertilityBackend,
			Path:    common.DefaultFertilityModel,
		},
		common.PurposeRegularity: {
			Backend: common.DefaultRegularityBackend,
			Path:    common.DefaultRegularityModel,
		},
	}
}

func applyModelEnv(models map[string]ModelConfig) {
	overrides := []struct {
		purpose, backendKey, pathKey string
	}{
		{common.PurposeFertility, common.EnvFertilityBackend, common.EnvFertilityModel},
		{common.PurposeRegularity, common.EnvRegularityBackend, common.EnvRegularityModel},
	}
	for _, o := range overrides {
		mc := models[o.purpose]
		mc.Backend = getEnvOrDefault(o.backendKey, mc.Backend)
		mc.Path = getEnvOrDefault(o.pathKey, mc.Path)
		models[o.purpose] = mc
	}
}

// advisoryKey prefers ADVISORY_API_KEY, then GEMINI_API_KEY for the gemini
// provider, then the config file value.
func advisoryKey(provider, configValue string) string {
	if v := os.Getenv(common.EnvAdvisoryAPIKey); v != "" {
		return v
	}
	if provider == common.DefaultAdvisoryProvider {
		if v := os.Getenv(common.EnvGeminiAPIKey); v != "" {
			return v
		}
	}
	return configValue
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.HTTPAddr == "" {
		return fmt.Errorf("HTTP address cannot be empty")
	}

	// Validate time durations
	if settings.InferenceTimeout < 100*time.Millisecond || settings.InferenceTimeout > 5*time.Minute {
		return fmt.Errorf("inference timeout must be between 100ms and 5m, got %v", settings.InferenceTimeout)
	}
	if settings.CacheTTL < 0 || settings.CacheTTL > 24*time.Hour {
		return fmt.Errorf("prediction cache TTL must be between 0 and 24h, got %v", settings.CacheTTL)
	}

	// Validate integer values
	if settings.CacheSize < 0 || settings.CacheSize > 100000 {
		return fmt.Errorf("prediction cache size must be between 0 and 100000, got %d", settings.CacheSize)
	}

	// Validate models
	if len(settings.Models) == 0 {
		return fmt.Errorf("at least one model must be configured")
	}
	for purpose, mc := range settings.Models {
		if purpose != common.PurposeFertility && purpose != common.PurposeRegularity {
			return fmt.Errorf("unknown model purpose %q", purpose)
		}
		switch mc.Backend {
		case ml.BackendTree, ml.BackendONNX, ml.BackendPython:
			if mc.Path == "" {
				return fmt.Errorf("%s: model path is required for backend %s", purpose, mc.Backend)
			}
		case ml.BackendRule:
		default:
			return fmt.Errorf("%s: unknown model backend %q", purpose, mc.Backend)
		}
		if err := settings.Schema(purpose).Validate(); err != nil {
			return fmt.Errorf("%s: invalid feature schema: %w", purpose, err)
		}
	}

	// Validate advisory settings
	switch settings.Advisory.Provider {
	case "gemini", "openai", "compatible":
	default:
		return fmt.Errorf("unknown advisory provider %q", settings.Advisory.Provider)
	}
	if settings.Advisory.Timeout < time.Second || settings.Advisory.Timeout > common.MaxAdvisoryTimeout {
		return fmt.Errorf("advisory timeout must be between 1s and %v, got %v", common.MaxAdvisoryTimeout, settings.Advisory.Timeout)
	}
	if settings.Advisory.RequestsPerMinute < 1 || settings.Advisory.RequestsPerMinute > 600 {
		return fmt.Errorf("advisory requests per minute must be between 1 and 600, got %d", settings.Advisory.RequestsPerMinute)
	}

	return nil
}
