package common

import "time"

// Prediction purposes
const (
	PurposeFertility  = "fertility"
	PurposeRegularity = "regularity"
)

// Environment variable keys
const (
	EnvConfigFile        = "CONFIG_FILE"
	EnvHTTPAddr          = "HTTP_ADDR"
	EnvDataPath          = "DATA_PATH"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFile           = "LOG_FILE"
	EnvPythonPath        = "PYTHON_PATH"
	EnvORTLibrary        = "ONNXRUNTIME_LIB"
	EnvFertilityBackend  = "FERTILITY_BACKEND"
	EnvFertilityModel    = "FERTILITY_MODEL_PATH"
	EnvRegularityModel   = "REGULARITY_MODEL_PATH"
	EnvRegularityBackend = "REGULARITY_BACKEND"
	EnvInferenceTimeout  = "INFERENCE_TIMEOUT"
	EnvCacheSize         = "PREDICTION_CACHE_SIZE"
	EnvCacheTTL          = "PREDICTION_CACHE_TTL"
	EnvGeminiAPIKey      = "GEMINI_API_KEY"
	EnvAdvisoryAPIKey    = "ADVISORY_API_KEY"
	EnvAdvisoryProvider  = "ADVISORY_PROVIDER"
	EnvAdvisoryModel     = "ADVISORY_MODEL"
	EnvAdvisoryBaseURL   = "ADVISORY_BASE_URL"
	EnvAdvisoryTimeout   = "ADVISORY_TIMEOUT"
	EnvAdvisoryRPM       = "ADVISORY_REQUESTS_PER_MINUTE"
)

// Configuration defaults
const (
	DefaultHTTPAddr          = ":8501"
	DefaultLogLevel          = "info"
	DefaultFertilityBackend  = "python"
	DefaultFertilityModel    = "models/rf_fertility_model.joblib"
	DefaultRegularityBackend = "python"
	DefaultRegularityModel   = "models/rf_regular_cycle_model.joblib"
	DefaultAdvisoryProvider  = "gemini"
	DefaultAdvisoryModel     = "gemini-1.5-flash"
	DefaultAdvisoryRPM       = 30
	DefaultCacheSize         = 256
)

// Advisory calls must finish well inside the dashboard's write timeout.
const (
	MaxAdvisoryTimeout = 60 * time.Second
	HTTPWriteTimeout   = MaxAdvisoryTimeout + 30*time.Second
)

// Error messages
const (
	ErrMsgModelUnavailable = "prediction model is unavailable"
	ErrMsgInvalidInput     = "please check your input"
	ErrMsgPredictionFailed = "prediction failed"
)
