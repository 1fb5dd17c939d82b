package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbraddock/showcircuit/internal/platform/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	SnapshotBackendMemory   = "memory"
	SnapshotBackendPostgres = "postgres"
	SnapshotBackendBlob     = "blob"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	LogLevel           logging.Level
	CORSAllowedOrigins []string

	CacheEnabled bool
	CacheTTL     time.Duration

	PprofEnabled bool
	PprofAddr    string

	UptraceEnabled     bool
	UptraceDSN         string
	UptraceLogsEnabled bool

	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration

	CompSuiteBaseURL               string
	CompSuiteTokenURL              string
	CompSuiteClientID              string
	CompSuiteClientSecret          string
	CompSuiteTimeout               time.Duration
	CompSuiteMaxRetries            int
	CompSuiteCircuitEnabled        bool
	CompSuiteCircuitFailureCount   int
	CompSuiteCircuitOpenTimeout    time.Duration
	CompSuiteCircuitHalfOpenMaxReq int
	CircuitID                      string

	ScrapeConcurrency int
	ScrapeTimeout     time.Duration
	RecapTimeout      time.Duration

	SnapshotBackend string
	DBURL           string
	BlobBaseURL     string
	BlobToken       string
	BlobTimeout     time.Duration

	InternalJobToken string
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceDSN == "" {
		uptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	uptraceLogsEnabled, err := strconv.ParseBool(getEnv("UPTRACE_LOGS_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_LOGS_ENABLED: %w", err)
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}
	if pyroscopeUploadRate <= 0 {
		return Config{}, fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}

	compSuiteTimeout, err := time.ParseDuration(getEnv("COMPSUITE_TIMEOUT", "20s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse COMPSUITE_TIMEOUT: %w", err)
	}
	if compSuiteTimeout <= 0 {
		return Config{}, fmt.Errorf("COMPSUITE_TIMEOUT must be > 0")
	}
	// Pipeline runs are rerun whole rather than retried per call, so the
	// catalog client does not retry unless explicitly configured to.
	compSuiteMaxRetries, err := getEnvAsInt("COMPSUITE_MAX_RETRIES", 0)
	if err != nil {
		return Config{}, fmt.Errorf("parse COMPSUITE_MAX_RETRIES: %w", err)
	}
	if compSuiteMaxRetries < 0 {
		return Config{}, fmt.Errorf("COMPSUITE_MAX_RETRIES must be >= 0")
	}
	compSuiteCircuitEnabled, err := strconv.ParseBool(getEnv("COMPSUITE_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse COMPSUITE_CIRCUIT_ENABLED: %w", err)
	}
	compSuiteCircuitFailureCount, err := getEnvAsInt("COMPSUITE_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse COMPSUITE_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if compSuiteCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("COMPSUITE_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	compSuiteCircuitOpenTimeout, err := time.ParseDuration(getEnv("COMPSUITE_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse COMPSUITE_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if compSuiteCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("COMPSUITE_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	compSuiteCircuitHalfOpenMaxReq, err := getEnvAsInt("COMPSUITE_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse COMPSUITE_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if compSuiteCircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("COMPSUITE_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	compSuiteBaseURL := strings.TrimSpace(getEnv("COMPSUITE_BASE_URL", "https://api.competitionsuite.com/v3"))
	compSuiteTokenURL := strings.TrimSpace(getEnv("COMPSUITE_TOKEN_URL", "https://api.competitionsuite.com/oauth2/token"))
	compSuiteClientID := strings.TrimSpace(getEnv("COMPSUITE_CLIENT_ID", ""))
	compSuiteClientSecret := strings.TrimSpace(getEnv("COMPSUITE_CLIENT_SECRET", ""))
	if compSuiteClientID == "" {
		return Config{}, fmt.Errorf("COMPSUITE_CLIENT_ID is required")
	}
	if compSuiteClientSecret == "" {
		return Config{}, fmt.Errorf("COMPSUITE_CLIENT_SECRET is required")
	}

	scrapeConcurrency, err := getEnvAsInt("SCRAPE_CONCURRENCY", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse SCRAPE_CONCURRENCY: %w", err)
	}
	if scrapeConcurrency < 1 {
		return Config{}, fmt.Errorf("SCRAPE_CONCURRENCY must be >= 1")
	}
	scrapeTimeout, err := time.ParseDuration(getEnv("SCRAPE_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SCRAPE_TIMEOUT: %w", err)
	}
	if scrapeTimeout <= 0 {
		return Config{}, fmt.Errorf("SCRAPE_TIMEOUT must be > 0")
	}
	recapTimeout, err := time.ParseDuration(getEnv("RECAP_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RECAP_TIMEOUT: %w", err)
	}
	if recapTimeout <= 0 {
		return Config{}, fmt.Errorf("RECAP_TIMEOUT must be > 0")
	}

	snapshotBackend, err := parseSnapshotBackend(getEnv("SNAPSHOT_BACKEND", SnapshotBackendMemory))
	if err != nil {
		return Config{}, err
	}
	dbURL := strings.TrimSpace(getEnv("DB_URL", ""))
	if snapshotBackend == SnapshotBackendPostgres && dbURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required when SNAPSHOT_BACKEND=postgres")
	}
	blobBaseURL := strings.TrimSpace(getEnv("BLOB_BASE_URL", ""))
	if snapshotBackend == SnapshotBackendBlob && blobBaseURL == "" {
		return Config{}, fmt.Errorf("BLOB_BASE_URL is required when SNAPSHOT_BACKEND=blob")
	}
	blobTimeout, err := time.ParseDuration(getEnv("BLOB_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse BLOB_TIMEOUT: %w", err)
	}
	if blobTimeout <= 0 {
		return Config{}, fmt.Errorf("BLOB_TIMEOUT must be > 0")
	}

	cacheEnabled, err := strconv.ParseBool(getEnv("CACHE_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_ENABLED: %w", err)
	}
	cacheTTL, err := time.ParseDuration(getEnv("CACHE_TTL", "60s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_TTL: %w", err)
	}
	if cacheTTL <= 0 {
		return Config{}, fmt.Errorf("CACHE_TTL must be > 0")
	}

	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "120s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}

	cfg := Config{
		AppEnv:             appEnv,
		ServiceName:        getEnv("APP_SERVICE_NAME", "showcircuit-api"),
		ServiceVersion:     getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:           getEnv("APP_HTTP_ADDR", ":8080"),
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		LogLevel:           parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		CacheEnabled: cacheEnabled,
		CacheTTL:     cacheTTL,

		PprofEnabled: pprofEnabled,
		PprofAddr:    pprofAddr,

		UptraceEnabled:     uptraceEnabled,
		UptraceDSN:         uptraceDSN,
		UptraceLogsEnabled: uptraceLogsEnabled,

		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     pyroscopeServerAddress,
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:        pyroscopeUploadRate,

		CompSuiteBaseURL:               compSuiteBaseURL,
		CompSuiteTokenURL:              compSuiteTokenURL,
		CompSuiteClientID:              compSuiteClientID,
		CompSuiteClientSecret:          compSuiteClientSecret,
		CompSuiteTimeout:               compSuiteTimeout,
		CompSuiteMaxRetries:            compSuiteMaxRetries,
		CompSuiteCircuitEnabled:        compSuiteCircuitEnabled,
		CompSuiteCircuitFailureCount:   compSuiteCircuitFailureCount,
		CompSuiteCircuitOpenTimeout:    compSuiteCircuitOpenTimeout,
		CompSuiteCircuitHalfOpenMaxReq: compSuiteCircuitHalfOpenMaxReq,
		CircuitID:                      strings.TrimSpace(getEnv("CIRCUIT_ID", "")),

		ScrapeConcurrency: scrapeConcurrency,
		ScrapeTimeout:     scrapeTimeout,
		RecapTimeout:      recapTimeout,

		SnapshotBackend: snapshotBackend,
		DBURL:           dbURL,
		BlobBaseURL:     blobBaseURL,
		BlobToken:       strings.TrimSpace(getEnv("BLOB_TOKEN", "")),
		BlobTimeout:     blobTimeout,

		InternalJobToken: strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", "")),
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	return cfg, nil
}

func parseSnapshotBackend(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case SnapshotBackendMemory, SnapshotBackendPostgres, SnapshotBackendBlob:
		return value, nil
	default:
		return "", fmt.Errorf("invalid SNAPSHOT_BACKEND %q: valid values are %s, %s, %s",
			v, SnapshotBackendMemory, SnapshotBackendPostgres, SnapshotBackendBlob)
	}
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}
