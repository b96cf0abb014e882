package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/rotkonetworks/gavel/pkg/log"
	"github.com/rotkonetworks/gavel/pkg/rpc"
)

const (
	configDirPathEnv     = "GAVEL_CONFIG_DIR_PATH"
	defaultConfigDirPath = "."
)

const (
	RequestIDsRandom     = "random"
	RequestIDsSequential = "sequential"
)

// Config represents the overall application configuration
type Config struct {
	Log log.Config

	ConnectTimeout     time.Duration `env:"GAVEL_CONNECT_TIMEOUT" env-default:"10s" validate:"gt=0"`
	HandshakeTimeout   time.Duration `env:"GAVEL_HANDSHAKE_TIMEOUT" env-default:"10s" validate:"gt=0"`
	VerifyCertificates bool          `env:"GAVEL_VERIFY_CERTIFICATES" env-default:"false"`
	RequestIDs         string        `env:"GAVEL_REQUEST_IDS" env-default:"random" validate:"oneof=random sequential"`
	Output             string        `env:"GAVEL_OUTPUT" env-default:"json" validate:"oneof=json table"`
	MetricsFile        string        `env:"GAVEL_METRICS_FILE"` // node_exporter textfile, disabled when empty
	TraceOutput        string        `env:"GAVEL_TRACE"`        // "stderr" or a file path, disabled when empty
}

// LoadConfig loads $GAVEL_CONFIG_DIR_PATH/.env when present, then reads the
// environment. Variables already set in the environment win over .env.
func LoadConfig() (Config, error) {
	configDirPath := os.Getenv(configDirPathEnv)
	if configDirPath == "" {
		configDirPath = defaultConfigDirPath
	}

	configDotEnvPath := filepath.Join(configDirPath, ".env")
	if err := godotenv.Load(configDotEnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load %s: %w", configDotEnvPath, err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read env: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration once flags have been applied.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DialerConfig returns the dialer defaults with the configured timeouts and
// certificate verification applied.
func (c Config) DialerConfig() rpc.WebsocketDialerConfig {
	cfg := rpc.DefaultWebsocketDialerConfig
	cfg.ConnectTimeout = c.ConnectTimeout
	cfg.HandshakeTimeout = c.HandshakeTimeout
	cfg.VerifyCertificates = c.VerifyCertificates
	return cfg
}

// IDGenerator returns the request id scheme selected by RequestIDs.
func (c Config) IDGenerator() rpc.IDGenerator {
	if c.RequestIDs == RequestIDsSequential {
		return rpc.NewSequentialIDs()
	}
	return rpc.RandomID
}
