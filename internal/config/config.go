package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
//
// Optional provider credentials (LLM, TTS) may be absent; the affected
// services degrade to their deterministic fallbacks instead of failing
// startup. Telephony signature material is also optional at startup, but the
// verifier fails closed, so webhooks are rejected until it is configured.
type Config struct {
	App       AppConfig
	Telephony TelephonyConfig
	Routing   RoutingConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	LLM       LLMConfig
	TTS       TTSConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// TelephonyConfig carries webhook authentication material.
// Scheme selects how inbound webhooks are verified:
// - "hmac": HMAC-SHA1 over URL + sorted form params (Twilio convention).
// - "ed25519": detached signature over "{timestamp}|{body}" (Telnyx convention).
type TelephonyConfig struct {
	SignatureScheme    string
	AuthToken          string
	PublicKeyB64       string
	TimestampTolerance time.Duration

	// MaxConcurrentCalls caps simultaneous accepted calls per tenant.
	// 0 disables the cap; it also requires Redis to be configured.
	MaxConcurrentCalls int
}

// RoutingConfig selects the tenant number routing source.
// "file" reads a JSON table from FilePath; "postgres" reads the
// tenant_numbers table via DBConfig.
type RoutingConfig struct {
	Source   string
	FilePath string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// RedisConfig is optional. When Addr is empty, the utterance cancellation
// set falls back to in-process memory and per-tenant call caps are skipped.
type RedisConfig struct {
	Addr string
}

// AuthConfig protects the internal /v1 API (orchestrator-to-core).
// When JWTSecret is empty the middleware is disabled; webhook endpoints are
// authenticated by provider signatures regardless.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration
}

// LLMConfig points the decision engine at an OpenAI-compatible
// chat-completions endpoint. Empty APIKey means fallback-only decisions.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// TTSConfig points the speech service at a synthesis provider.
// Empty APIKey means every utterance produces the placeholder fallback chunk.
type TTSConfig struct {
	Provider string
	APIKey   string
	VoiceID  string
	Model    string
	Timeout  time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Telephony.SignatureScheme = strings.TrimSpace(os.Getenv("TELEPHONY_SIGNATURE_SCHEME"))
	c.Telephony.AuthToken = os.Getenv("TELEPHONY_AUTH_TOKEN")
	c.Telephony.PublicKeyB64 = strings.TrimSpace(os.Getenv("TELEPHONY_PUBLIC_KEY"))
	c.Telephony.TimestampTolerance = optionalDuration("TELEPHONY_TS_TOLERANCE")
	c.Telephony.MaxConcurrentCalls = optionalInt("TELEPHONY_MAX_CONCURRENT_CALLS")

	c.Routing.Source = strings.TrimSpace(os.Getenv("ROUTING_SOURCE"))
	c.Routing.FilePath = strings.TrimSpace(os.Getenv("ROUTING_FILE_PATH"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = optionalInt("DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))

	c.Auth.JWTSecret = os.Getenv("SERVICE_JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("SERVICE_JWT_ISSUER"))
	c.Auth.TokenTTL = optionalDuration("SERVICE_JWT_TTL")

	c.LLM.APIKey = os.Getenv("LLM_API_KEY")
	c.LLM.BaseURL = strings.TrimSpace(os.Getenv("LLM_BASE_URL"))
	c.LLM.Model = strings.TrimSpace(os.Getenv("LLM_MODEL"))
	c.LLM.Timeout = optionalDuration("LLM_TIMEOUT")

	c.TTS.Provider = strings.TrimSpace(os.Getenv("TTS_PROVIDER"))
	c.TTS.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	c.TTS.VoiceID = strings.TrimSpace(os.Getenv("ELEVENLABS_VOICE_ID"))
	c.TTS.Model = strings.TrimSpace(os.Getenv("ELEVENLABS_MODEL"))
	c.TTS.Timeout = optionalDuration("TTS_TIMEOUT")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Telephony.SignatureScheme != "" && !isValidScheme(c.Telephony.SignatureScheme) {
		errs = append(errs, fmt.Errorf("TELEPHONY_SIGNATURE_SCHEME must be hmac or ed25519, got %q", c.Telephony.SignatureScheme))
	}
	if c.Telephony.SignatureScheme == "ed25519" && c.Telephony.PublicKeyB64 != "" {
		if _, err := base64.StdEncoding.DecodeString(c.Telephony.PublicKeyB64); err != nil {
			errs = append(errs, errors.New("TELEPHONY_PUBLIC_KEY must be base64"))
		}
	}

	switch c.Routing.Source {
	case "", "file":
		if c.Routing.FilePath == "" {
			errs = append(errs, errors.New("ROUTING_FILE_PATH is required for the file routing source"))
		}
	case "postgres":
		if c.DB.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required for the postgres routing source"))
		}
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required for the postgres routing source"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required for the postgres routing source"))
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	default:
		errs = append(errs, fmt.Errorf("ROUTING_SOURCE must be file or postgres, got %q", c.Routing.Source))
	}

	if c.TTS.Provider != "" && c.TTS.Provider != "elevenlabs" {
		errs = append(errs, fmt.Errorf("TTS_PROVIDER must be elevenlabs, got %q", c.TTS.Provider))
	}

	return joinErrors(errs)
}

func (c *Config) applyDefaults() {
	if c.Telephony.SignatureScheme == "" {
		c.Telephony.SignatureScheme = "hmac"
	}
	if c.Telephony.TimestampTolerance <= 0 {
		c.Telephony.TimestampTolerance = 5 * time.Minute
	}
	if c.Routing.Source == "" {
		c.Routing.Source = "file"
	}
	if c.DB.SSLMode == "" {
		c.DB.SSLMode = "disable"
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 15 * time.Minute
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 10 * time.Second
	}
	if c.TTS.Provider == "" {
		c.TTS.Provider = "elevenlabs"
	}
	if c.TTS.VoiceID == "" {
		c.TTS.VoiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	if c.TTS.Model == "" {
		c.TTS.Model = "eleven_multilingual_v2"
	}
	if c.TTS.Timeout <= 0 {
		c.TTS.Timeout = 15 * time.Second
	}
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// TelephonyPublicKey returns the decoded Ed25519 key bytes, or nil when
// unset or undecodable. The verifier treats nil as "cannot verify".
func (c Config) TelephonyPublicKey() []byte {
	if c.Telephony.PublicKeyB64 == "" {
		return nil
	}
	b, err := base64.StdEncoding.DecodeString(c.Telephony.PublicKeyB64)
	if err != nil {
		return nil
	}
	return b
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optionalDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidScheme(v string) bool {
	switch v {
	case "hmac", "ed25519":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
