package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

// 不安全的默认值列表 (生产环境不应使用)
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"default-secret-key":                   true,
	"":                                     true,
}

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Frps     FrpsConfig
	Policy   PolicyConfig
	Monitor  MonitorConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Schema   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey string
}

// FrpsConfig points at the relay's dashboard API
type FrpsConfig struct {
	DashboardAddr     string
	DashboardUser     string
	DashboardPassword string
}

// PolicyConfig bounds port allocation
type PolicyConfig struct {
	MaxPortsPerUser int
	MinPort         int
	MaxPort         int
}

// MonitorConfig controls the traffic reconciliation loop
type MonitorConfig struct {
	IntervalSeconds int
	TimeoutSeconds  int
}

func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8006"),
			Mode: getEnv("GIN_MODE", "release"), // 默认为 release 模式
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "saas_user"),
			Password: getEnv("DB_PASSWORD", "saas_pass"),
			DBName:   getEnv("DB_NAME", "saas_db"),
			Schema:   getEnv("DB_SCHEMA", "tunnel"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
		},
		Frps: FrpsConfig{
			DashboardAddr:     getEnv("FRPS_DASHBOARD_ADDR", "http://frps:7500"),
			DashboardUser:     getEnv("FRPS_DASHBOARD_USER", "admin"),
			DashboardPassword: getEnv("FRPS_DASHBOARD_PASSWORD", "admin"),
		},
		Policy: PolicyConfig{
			MaxPortsPerUser: getEnvInt("MAX_PORTS_PER_USER", 5),
			MinPort:         getEnvInt("MIN_PORT", 20000),
			MaxPort:         getEnvInt("MAX_PORT", 21000),
		},
		Monitor: MonitorConfig{
			IntervalSeconds: getEnvInt("MONITOR_INTERVAL", 60),
			TimeoutSeconds:  getEnvInt("MONITOR_FETCH_TIMEOUT", 10),
		},
	}

	// 日志脱敏: 不记录敏感配置
	log.Printf("[config] Tunnel Admin Service loaded: port=%s db=%s/%s.%s frps=%s ports=%d-%d quota=%d interval=%ds",
		cfg.Server.Port, cfg.Database.Host, cfg.Database.DBName, cfg.Database.Schema,
		cfg.Frps.DashboardAddr, cfg.Policy.MinPort, cfg.Policy.MaxPort,
		cfg.Policy.MaxPortsPerUser, cfg.Monitor.IntervalSeconds)

	return cfg
}

// Validate 验证配置有效性，生产环境必须设置安全的密钥
func (c *Config) Validate() error {
	if insecureDefaults[c.JWT.SecretKey] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}

	if c.Policy.MinPort > c.Policy.MaxPort {
		return fmt.Errorf("MIN_PORT (%d) must not exceed MAX_PORT (%d)", c.Policy.MinPort, c.Policy.MaxPort)
	}
	if c.Policy.MaxPortsPerUser <= 0 {
		return fmt.Errorf("MAX_PORTS_PER_USER must be positive")
	}
	if c.Monitor.IntervalSeconds <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL must be positive")
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
