package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP       HTTPConfig
	Mongo      MongoConfig
	Graph      GraphConfig
	Pinata     PinataConfig
	Ledger     LedgerConfig
	Review     ReviewConfig
	Settlement SettlementConfig
	SMTP       SMTPConfig
	Auth       AuthConfig
	Logging    LoggingConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AllowedOriginsCSV string
}

// MongoConfig describes connectivity to the document store.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
}

// GraphConfig describes connectivity to the consent graph. An empty URI
// disables the graph mirror.
type GraphConfig struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// PinataConfig configures the content-addressable file store client.
type PinataConfig struct {
	Endpoint      string
	GatewayBase   string
	JWT           string
	UploadTimeout time.Duration
}

// LedgerConfig configures the Aptos fullnode client. PrivateKeyHex is the
// funded settlement key; only settlement needs it, read paths do not.
type LedgerConfig struct {
	NodeURL        string
	ChainID        uint8
	SourceAddress  string
	PrivateKeyHex  string
	RequestTimeout time.Duration
}

// ReviewConfig carries the review-workflow policy knobs.
type ReviewConfig struct {
	AdminAddressesCSV string
}

// SettlementConfig controls the background reward settler.
type SettlementConfig struct {
	Enabled  bool
	Interval time.Duration
	Workers  int
}

// SMTPConfig configures outcome notification mail. An empty host disables
// notifications.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
}

// AuthConfig configures session token issuance.
type AuthConfig struct {
	JWTSecret  string
	SessionTTL time.Duration
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	Colored       bool
	IncludeCaller bool
}

const (
	defaultHost              = "0.0.0.0"
	defaultPort              = 8080
	defaultReadTimeout       = 10 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 60 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultMongoConnTimeout  = 10 * time.Second
	defaultQueryTimeout      = 5 * time.Second
	defaultUploadTimeout     = 2 * time.Minute
	defaultLedgerTimeout     = 30 * time.Second
	defaultSettleInterval    = time.Minute
	defaultSettleWorkers     = 4
	defaultSessionTTL        = 72 * time.Hour
	defaultLoggingLevel      = "info"
	defaultLoggingFormat     = "text"
	defaultGraphMaxSessions  = 10
	defaultSMTPPort          = 587
	defaultPinataEndpoint    = "https://api.pinata.cloud/pinning/pinFileToIPFS"
	defaultPinataGateway     = "https://gateway.pinata.cloud/ipfs"
	defaultLedgerNodeURL     = "https://fullnode.testnet.aptoslabs.com/v1"
	defaultLedgerTestChainID = 2
)

// ErrMissingJWTSecret indicates session tokens cannot be issued.
var ErrMissingJWTSecret = errors.New("AUTH_JWT_SECRET is required")

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Host:            valueOrDefault("SERVER_HOST", defaultHost),
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Mongo: MongoConfig{
			URI:            valueOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       valueOrDefault("MONGODB_DATABASE", "clinishare"),
			ConnectTimeout: parseDurationWithDefault("MONGODB_CONNECT_TIMEOUT", defaultMongoConnTimeout),
			QueryTimeout:   parseDurationWithDefault("MONGODB_QUERY_TIMEOUT", defaultQueryTimeout),
		},
		Graph: GraphConfig{
			URI:            os.Getenv("GRAPH_URI"),
			Database:       valueOrDefault("GRAPH_DATABASE", ""),
			Username:       os.Getenv("GRAPH_USERNAME"),
			Password:       os.Getenv("GRAPH_PASSWORD"),
			MaxConnections: parseIntWithDefault("GRAPH_MAX_CONNECTIONS", defaultGraphMaxSessions),
		},
		Pinata: PinataConfig{
			Endpoint:      valueOrDefault("PINATA_ENDPOINT", defaultPinataEndpoint),
			GatewayBase:   valueOrDefault("PINATA_GATEWAY", defaultPinataGateway),
			JWT:           os.Getenv("PINATA_JWT"),
			UploadTimeout: parseDurationWithDefault("PINATA_UPLOAD_TIMEOUT", defaultUploadTimeout),
		},
		Ledger: LedgerConfig{
			NodeURL:        valueOrDefault("APTOS_NODE_URL", defaultLedgerNodeURL),
			ChainID:        uint8(parseIntWithDefault("APTOS_CHAIN_ID", defaultLedgerTestChainID)),
			SourceAddress:  os.Getenv("APTOS_SOURCE_ADDRESS"),
			PrivateKeyHex:  os.Getenv("APTOS_PRIVATE_KEY"),
			RequestTimeout: parseDurationWithDefault("APTOS_REQUEST_TIMEOUT", defaultLedgerTimeout),
		},
		Review: ReviewConfig{
			AdminAddressesCSV: os.Getenv("ADMIN_ADDRESSES"),
		},
		Settlement: SettlementConfig{
			Enabled:  parseBoolWithDefault("SETTLEMENT_ENABLED", false),
			Interval: parseDurationWithDefault("SETTLEMENT_INTERVAL", defaultSettleInterval),
			Workers:  parseIntWithDefault("SETTLEMENT_WORKERS", defaultSettleWorkers),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_SERVER"),
			Port:     parseIntWithDefault("SMTP_PORT", defaultSMTPPort),
			From:     os.Getenv("SMTP_EMAIL"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		Auth: AuthConfig{
			JWTSecret:  os.Getenv("AUTH_JWT_SECRET"),
			SessionTTL: parseDurationWithDefault("AUTH_SESSION_TTL", defaultSessionTTL),
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			Colored:       parseBoolWithDefault("LOG_COLOR", false),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	if v := os.Getenv("SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.ReadTimeout = d
		} else {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
		}
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.WriteTimeout = d
		} else {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
		}
	}

	if v := os.Getenv("SERVER_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.IdleTimeout = d
		} else {
			return Config{}, fmt.Errorf("invalid SERVER_IDLE_TIMEOUT: %w", err)
		}
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.ShutdownTimeout = d
		} else {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT: %w", err)
		}
	}

	cfg.HTTP.AllowedOriginsCSV = os.Getenv("SERVER_ALLOWED_ORIGINS")

	if cfg.Auth.JWTSecret == "" {
		return Config{}, ErrMissingJWTSecret
	}

	return cfg, nil
}

// AdminAddresses returns the normalized reviewer allow-list.
func (c ReviewConfig) AdminAddresses() []string {
	if c.AdminAddressesCSV == "" {
		return nil
	}
	var addrs []string
	for _, part := range strings.Split(c.AdminAddressesCSV, ",") {
		addr := strings.ToLower(strings.TrimSpace(part))
		if addr == "" {
			continue
		}
		addrs = append(addrs, addr)
	}
	return addrs
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseDurationWithDefault(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
