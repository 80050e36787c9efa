package server

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr        string
	Port        int
	DBStr       string
	MigratePath string
	JWTSecret   string
	TokenTTL    string
}

const (
	defaultAddr        = "0.0.0.0"
	defaultPort        = 8080
	defaultDBStr       = "postgresql://shouldbeinVaultuser:shouldbeinVaultpassword@db:5432/tasks?sslmode=disable"
	defaultMigratePath = "migrations"
	defaultJWTSecret   = "shouldbeinVaultjwtsecretchangeme"
	defaultTokenTTL    = "168h"

	minSecretLen = 32
)

var (
	addr        = flag.String("addr", defaultAddr, "server address (default 0.0.0.0)")
	port        = flag.Int("port", defaultPort, "server port (default 8080)")
	dbstr       = flag.String("dbstr", defaultDBStr, "database connection string")
	dbDsn       = flag.String("dbdsn", "", "database DSN (takes precedence over dbstr)")
	migratePath = flag.String("migratepath", defaultMigratePath, "path to the migrations directory")
	jwtSecret   = flag.String("jwtsecret", "", "token signing secret, at least 32 characters")
	tokenTTL    = flag.String("tokenttl", "", "token lifetime as a duration, e.g. 168h")
	configFile  = flag.String("c", "", "path to a JSON configuration file")
	parsed      = false
)

func ReadConfig() *Config {
	if !parsed {
		flag.Parse()
		parsed = true
	}

	cfg := &Config{
		Addr:        defaultAddr,
		Port:        defaultPort,
		DBStr:       defaultDBStr,
		MigratePath: defaultMigratePath,
		JWTSecret:   defaultJWTSecret,
		TokenTTL:    defaultTokenTTL,
	}

	if jsonConfig := loadJSONConfig(); jsonConfig != nil {
		cfg = jsonConfig
	}

	cfg = applyEnvOverrides(cfg)
	cfg = applyFlagOverrides(cfg)

	return cfg
}

// Validate rejects configurations the auth layer cannot run with.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < minSecretLen {
		return fmt.Errorf("JWT secret is %d characters, need at least %d", len(c.JWTSecret), minSecretLen)
	}
	if _, err := time.ParseDuration(c.TokenTTL); err != nil {
		return fmt.Errorf("invalid token TTL %q: %w", c.TokenTTL, err)
	}
	return nil
}

// TTL returns the parsed token lifetime, falling back to the default when the
// configured value does not parse.
func (c *Config) TTL() time.Duration {
	if d, err := time.ParseDuration(c.TokenTTL); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(defaultTokenTTL)
	return d
}

func loadJSONConfig() *Config {
	configPath := *configFile
	if configPath == "" {
		configPath = os.Getenv("CONFIG")
	}

	if configPath == "" {
		return nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		fmt.Printf("Warning: failed to read config file %s: %v\n", configPath, err)
		return nil
	}

	jsonConfig := Config{
		Addr:        defaultAddr,
		Port:        defaultPort,
		DBStr:       defaultDBStr,
		MigratePath: defaultMigratePath,
		JWTSecret:   defaultJWTSecret,
		TokenTTL:    defaultTokenTTL,
	}
	if err := json.Unmarshal(data, &jsonConfig); err != nil {
		fmt.Printf("Warning: failed to parse config file %s: %v\n", configPath, err)
		return nil
	}

	fmt.Printf("JSON configuration loaded from %s\n", configPath)
	return &jsonConfig
}

func applyEnvOverrides(cfg *Config) *Config {
	if addr := os.Getenv("ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err != nil {
			fmt.Printf("Warning: invalid PORT value: %s\n", port)
		} else if p < 1 || p > 65535 {
			fmt.Printf("Warning: PORT must be between 1 and 65535: %d\n", p)
		} else {
			cfg.Port = p
		}
	}
	if dbStr := os.Getenv("DB_STR"); dbStr != "" {
		cfg.DBStr = dbStr
	}
	if migratePath := os.Getenv("MIGRATE_PATH"); migratePath != "" {
		cfg.MigratePath = migratePath
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if ttl := os.Getenv("TOKEN_TTL"); ttl != "" {
		if _, err := time.ParseDuration(ttl); err != nil {
			fmt.Printf("Warning: invalid TOKEN_TTL value: %s\n", ttl)
		} else {
			cfg.TokenTTL = ttl
		}
	}

	if cfg.DBStr == defaultDBStr {
		dbUser := os.Getenv("DB_USER")
		dbPassword := os.Getenv("DB_PASSWORD")
		dbName := os.Getenv("DB_NAME")
		dbHost := os.Getenv("DB_HOST")
		dbPort := os.Getenv("DB_PORT")
		if dbUser != "" && dbPassword != "" && dbName != "" && dbHost != "" && dbPort != "" {
			cfg.DBStr = fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPassword, dbHost, dbPort, dbName)
		}
	}

	return cfg
}

func applyFlagOverrides(cfg *Config) *Config {
	if *addr != defaultAddr {
		cfg.Addr = *addr
	}
	if *port != defaultPort {
		cfg.Port = *port
	}
	if *migratePath != defaultMigratePath {
		cfg.MigratePath = *migratePath
	}
	if *jwtSecret != "" {
		cfg.JWTSecret = *jwtSecret
	}
	if *tokenTTL != "" {
		cfg.TokenTTL = *tokenTTL
	}

	if *dbDsn != "" {
		cfg.DBStr = *dbDsn
	} else if *dbstr != defaultDBStr {
		cfg.DBStr = *dbstr
	}

	return cfg
}
