package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates the whole service configuration.
type Config struct {
	Server     ServerConfig
	WhatsApp   WhatsAppConfig
	CareAPI    CareAPIConfig
	Auth       AuthConfig
	Session    SessionConfig
	RateLimits RateLimitConfig
	MessageLog MessageLogConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	whatsapp, err := loadWhatsAppConfig()
	if err != nil {
		return nil, err
	}

	careAPI, err := loadCareAPIConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	sess, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	limits, err := loadRateLimitConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:     server,
		WhatsApp:   whatsapp,
		CareAPI:    careAPI,
		Auth:       auth,
		Session:    sess,
		RateLimits: limits,
		MessageLog: MessageLogConfig{Path: strings.TrimSpace(os.Getenv("MESSAGE_LOG_PATH"))},
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// WhatsAppConfig describes the Graph API connection.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	VerifyToken   string
	APIVersion    string
	BaseURL       string
	Timeout       time.Duration
}

func loadWhatsAppConfig() (WhatsAppConfig, error) {
	timeout, err := parseDurationEnv("WHATSAPP_TIMEOUT", 30*time.Second)
	if err != nil {
		return WhatsAppConfig{}, err
	}

	accessToken := strings.TrimSpace(os.Getenv("WHATSAPP_ACCESS_TOKEN"))
	if accessToken == "" {
		return WhatsAppConfig{}, fmt.Errorf("WHATSAPP_ACCESS_TOKEN is required")
	}

	phoneNumberID := strings.TrimSpace(os.Getenv("WHATSAPP_PHONE_NUMBER_ID"))
	if phoneNumberID == "" {
		return WhatsAppConfig{}, fmt.Errorf("WHATSAPP_PHONE_NUMBER_ID is required")
	}

	verifyToken := strings.TrimSpace(os.Getenv("WHATSAPP_VERIFY_TOKEN"))
	if verifyToken == "" {
		return WhatsAppConfig{}, fmt.Errorf("WHATSAPP_VERIFY_TOKEN is required")
	}

	version := getEnvOrDefault("WHATSAPP_API_VERSION", "v22.0")
	baseURL := getEnvOrDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com/"+version)

	return WhatsAppConfig{
		AccessToken:   accessToken,
		PhoneNumberID: phoneNumberID,
		VerifyToken:   verifyToken,
		APIVersion:    version,
		BaseURL:       baseURL,
		Timeout:       timeout,
	}, nil
}

// CareAPIConfig describes the medical record backend connection.
type CareAPIConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func loadCareAPIConfig() (CareAPIConfig, error) {
	timeout, err := parseDurationEnv("CARE_API_TIMEOUT", 30*time.Second)
	if err != nil {
		return CareAPIConfig{}, err
	}

	baseURL := strings.TrimSpace(os.Getenv("CARE_API_BASE_URL"))
	if baseURL == "" {
		return CareAPIConfig{}, fmt.Errorf("CARE_API_BASE_URL is required")
	}

	return CareAPIConfig{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  strings.TrimSpace(os.Getenv("CARE_API_KEY")),
		Timeout: timeout,
	}, nil
}

// AuthConfig describes session token signing policy.
type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
}

func loadAuthConfig() (AuthConfig, error) {
	secret := strings.TrimSpace(os.Getenv("AUTH_SECRET"))
	if secret == "" {
		return AuthConfig{}, fmt.Errorf("AUTH_SECRET is required")
	}

	tokenTTL, err := parseDurationEnv("AUTH_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return AuthConfig{}, err
	}

	return AuthConfig{Secret: secret, TokenTTL: tokenTTL}, nil
}

// SessionConfig describes session lifecycle policy.
type SessionConfig struct {
	InactivityTimeout time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	timeout, err := parseDurationEnv("SESSION_TIMEOUT", 24*time.Hour)
	if err != nil {
		return SessionConfig{}, err
	}
	return SessionConfig{InactivityTimeout: timeout}, nil
}

// RateLimitConfig overrides the default outbound call budget.
type RateLimitConfig struct {
	SendCapacity   float64
	SendRefillRate float64
	ReadCapacity   float64
	ReadRefillRate float64
	CareCapacity   float64
	CareRefillRate float64
}

func loadRateLimitConfig() (RateLimitConfig, error) {
	cfg := RateLimitConfig{
		SendCapacity: 10, SendRefillRate: 5,
		ReadCapacity: 20, ReadRefillRate: 10,
		CareCapacity: 5, CareRefillRate: 2,
	}

	overrides := []struct {
		key    string
		target *float64
	}{
		{"RATE_LIMIT_SEND_CAPACITY", &cfg.SendCapacity},
		{"RATE_LIMIT_SEND_REFILL", &cfg.SendRefillRate},
		{"RATE_LIMIT_READ_CAPACITY", &cfg.ReadCapacity},
		{"RATE_LIMIT_READ_REFILL", &cfg.ReadRefillRate},
		{"RATE_LIMIT_CARE_CAPACITY", &cfg.CareCapacity},
		{"RATE_LIMIT_CARE_REFILL", &cfg.CareRefillRate},
	}
	for _, o := range overrides {
		val, err := parseOptionalFloatEnv(o.key)
		if err != nil {
			return RateLimitConfig{}, err
		}
		if val == nil {
			continue
		}
		if *val <= 0 {
			return RateLimitConfig{}, fmt.Errorf("invalid %s value: must be positive", o.key)
		}
		*o.target = *val
	}

	return cfg, nil
}

// MessageLogConfig locates the audit database. Empty path disables the trail.
type MessageLogConfig struct {
	Path string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
