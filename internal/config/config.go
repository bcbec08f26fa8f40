package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	JWT      JWTConfig      `yaml:"jwt"`
	Protocol ProtocolConfig `yaml:"protocol"`
	Treasury TreasuryConfig `yaml:"treasury"`
	CORS     CORSConfig     `yaml:"cors"`
	Admin    AdminConfig    `yaml:"admin"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig NATS message server configuration
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`
	ReconnectWait int    `yaml:"reconnect_wait"`
	MaxReconnects int    `yaml:"max_reconnects"`
}

// JWTConfig authentication token configuration
type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpiryHours int    `yaml:"expiryHours"`
}

// ProtocolConfig initial protocol parameters. The owner is fixed at boot;
// the rest seed the database on first run and can be changed by the owner
// through the admin API afterwards.
type ProtocolConfig struct {
	Owner            string `yaml:"owner"`
	Arbiter          string `yaml:"arbiter"`
	Relay            string `yaml:"relay"`
	ValidationBridge string `yaml:"validationBridge"`
	FeeRecipient     string `yaml:"feeRecipient"`
	FeeRateBps       uint32 `yaml:"feeRateBps"`
	SettlementAsset  string `yaml:"settlementAsset"`
}

// TreasuryConfig on-chain payout wallet configuration. When disabled the
// service runs in custody-only mode and withdrawals settle book-entry only.
type TreasuryConfig struct {
	Enabled    bool   `yaml:"enabled"`
	RPCURL     string `yaml:"rpcUrl"`
	PrivateKey string `yaml:"privateKey"`
	GasLimit   uint64 `yaml:"gasLimit"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// AdminConfig admin API access control configuration
type AdminConfig struct {
	AllowedIPs []string `yaml:"allowedIPs"`
}

var AppConfig *Config

// LoadConfig loads the configuration file and applies environment overrides
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("🔧 Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(&config)

	if config.Protocol.Owner == "" {
		return fmt.Errorf("protocol.owner must be configured")
	}

	if len(config.CORS.AllowedOrigins) > 0 {
		log.Printf("📋 [Config] CORS allowed origins: %d configured", len(config.CORS.AllowedOrigins))
	} else {
		log.Printf("📋 [Config] CORS: not configured (will allow all origins *)")
	}

	if len(config.Admin.AllowedIPs) > 0 {
		log.Printf("📋 [Config] Admin IP whitelist: %d IPs/CIDRs configured", len(config.Admin.AllowedIPs))
	} else {
		log.Printf("📋 [Config] Admin IP whitelist: not configured (localhost-only mode)")
	}

	AppConfig = &config
	return nil
}

// overrideFromEnv overrides configuration from environment variables
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.JWT.Secret = secret
	}

	if owner := os.Getenv("PROTOCOL_OWNER"); owner != "" {
		config.Protocol.Owner = owner
	}
	if arbiter := os.Getenv("PROTOCOL_ARBITER"); arbiter != "" {
		config.Protocol.Arbiter = arbiter
	}
	if relay := os.Getenv("PROTOCOL_RELAY"); relay != "" {
		config.Protocol.Relay = relay
	}
	if bridge := os.Getenv("PROTOCOL_VALIDATION_BRIDGE"); bridge != "" {
		config.Protocol.ValidationBridge = bridge
	}
	if feeRecipient := os.Getenv("PROTOCOL_FEE_RECIPIENT"); feeRecipient != "" {
		config.Protocol.FeeRecipient = feeRecipient
	}
	if feeRate := os.Getenv("PROTOCOL_FEE_RATE_BPS"); feeRate != "" {
		if r, err := strconv.ParseUint(feeRate, 10, 32); err == nil {
			config.Protocol.FeeRateBps = uint32(r)
		}
	}
	if asset := os.Getenv("PROTOCOL_SETTLEMENT_ASSET"); asset != "" {
		config.Protocol.SettlementAsset = asset
	}

	if enabled := os.Getenv("TREASURY_ENABLED"); enabled != "" {
		config.Treasury.Enabled = enabled == "true"
	}
	if rpcURL := os.Getenv("TREASURY_RPC_URL"); rpcURL != "" {
		config.Treasury.RPCURL = rpcURL
	}
	if privateKey := os.Getenv("TREASURY_PRIVATE_KEY"); privateKey != "" {
		config.Treasury.PrivateKey = privateKey
	}
	if gasLimit := os.Getenv("TREASURY_GAS_LIMIT"); gasLimit != "" {
		if limit, err := strconv.ParseUint(gasLimit, 10, 64); err == nil {
			config.Treasury.GasLimit = limit
		}
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		config.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}
}
