package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/sipsa-price-etl/internal/domain"
)

const defaultFallbackWSDLURL = "http://appweb.dane.gov.co/sipsaWS/SrvSipsaUpraBeanService?WSDL"

// Config holds all client settings, populated from environment variables.
type Config struct {
	WSDLURL         string
	FallbackWSDLURL string
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	MaxRetries      int
	Backoff         time.Duration

	OutputDir  string
	TargetCity string
	TopN       int
	Window     domain.WindowPolicy
	Fields     domain.Fields
	FieldsFile string

	LogLevel  string
	LogFormat string

	// Optional Kafka sink; disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string

	// Optional metrics export for the batch run.
	PushgatewayURL  string
	MetricsTextfile string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	connectTimeout, err := parseDuration("SIPSA_CONNECT_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	readTimeout, err := parseDuration("SIPSA_READ_TIMEOUT", "120s")
	if err != nil {
		return nil, err
	}
	backoff, err := parseDuration("SIPSA_BACKOFF", "500ms")
	if err != nil {
		return nil, err
	}
	skew, err := parseDuration("WINDOW_SKEW", "24h")
	if err != nil {
		return nil, err
	}

	maxRetries, err := parseInt("SIPSA_MAX_RETRIES", 3, 0, 10)
	if err != nil {
		return nil, err
	}
	windowDays, err := parseInt("WINDOW_DAYS", 7, 1, 366)
	if err != nil {
		return nil, err
	}
	fallbackCap, err := parseInt("WINDOW_FALLBACK_CAP", 5000, 1, 1_000_000)
	if err != nil {
		return nil, err
	}
	topN, err := parseInt("TOP_N", 20, 1, 1000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		WSDLURL:         sharedcfg.EnvOrDefault("SIPSA_WSDL_URL", "https://appweb.dane.gov.co/sipsaWS/SrvSipsaUpraBeanService?WSDL"),
		FallbackWSDLURL: defaultFallbackWSDLURL,
		ConnectTimeout:  connectTimeout,
		ReadTimeout:     readTimeout,
		MaxRetries:      maxRetries,
		Backoff:         backoff,

		OutputDir:  sharedcfg.EnvOrDefault("OUTPUT_DIR", "out"),
		TargetCity: sharedcfg.EnvOrDefault("TARGET_CITY", "Medellín"),
		TopN:       topN,
		Window: domain.WindowPolicy{
			Window: time.Duration(windowDays) * 24 * time.Hour,
			Skew:   skew,
			Cap:    fallbackCap,
		},
		Fields:     domain.DefaultFields(),
		FieldsFile: os.Getenv("FIELDS_FILE"),

		LogLevel:  sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),

		KafkaTopic: sharedcfg.EnvOrDefault("KAFKA_TOPIC", "sipsa-prices"),

		PushgatewayURL:  os.Getenv("PUSHGATEWAY_URL"),
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),
	}
	// Set but empty disables the fallback.
	if v, ok := os.LookupEnv("SIPSA_WSDL_FALLBACK_URL"); ok {
		cfg.FallbackWSDLURL = v
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if cfg.WSDLURL == "" {
		return nil, errors.New("SIPSA_WSDL_URL is required")
	}
	if strings.TrimSpace(cfg.TargetCity) == "" {
		return nil, errors.New("TARGET_CITY must not be blank")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	if cfg.FieldsFile != "" {
		override, err := LoadFields(cfg.FieldsFile)
		if err != nil {
			return nil, err
		}
		cfg.Fields = cfg.Fields.Merge(*override)
	}

	return cfg, nil
}

// LoadFields reads a YAML file of candidate key overrides. Lists left out of
// the file keep their defaults after Fields.Merge.
func LoadFields(path string) (*domain.Fields, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read FIELDS_FILE %q: %w", path, err)
	}
	var f domain.Fields
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse FIELDS_FILE %q: %w", path, err)
	}
	return &f, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative, got %s", key, d)
	}
	return d, nil
}

func parseInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", key, lo, hi)
	}
	return n, nil
}
