package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the WOPI server.
type Config struct {
	// Server settings
	Port          int
	BaseURL       string // External URL used to construct WOPISrc values
	MachineName   string // reported in X-WOPI-MachineName; defaults to os.Hostname
	ServerVersion string // reported in X-WOPI-ServerVersion

	// StorageBackend selects the storage.Adapter implementation: "local"
	// (default) or "s3".
	StorageBackend string
	StorageRoot    string // filesystem root when StorageBackend is "local"

	// WOPI-capable client (Collabora/LibreOffice Online) settings, used to
	// build discovery XML and editor launch URLs.
	WOPIClientURL        string
	WOPIClientEditorPath string
	WOPISrcBaseURL       string // overrides BaseURL when building WOPISrc for a client behind a different network path

	// S3-compatible storage settings
	S3Endpoint        string
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UseSSL          bool
	S3ForcePathStyle  bool // Required for most S3-compatible stores (MinIO, etc.)

	// S3 bearer auth: when enabled, storage requests carry a client-credentials
	// OIDC bearer token instead of static S3 credentials.
	S3BearerAuthEnabled  bool
	S3BearerTokenURL     string
	S3BearerClientID     string
	S3BearerClientSecret string

	// WOPI settings
	AccessTokenSecret string        // Secret used to sign/verify access tokens
	LockExpiration    time.Duration // Lock TTL (default 30 minutes per WOPI spec)

	// OIDC browser-login settings. When enabled, the browser UI is gated
	// behind an OIDC login flow and the /token endpoint is not registered.
	OIDCEnabled      bool
	OIDCIssuerURL    string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string
	SessionSecret    string

	// OpenTDF platform integration: attribute/obligation lookups for
	// CheckFileInfo's DisableCopy/DisablePrint/DisableExport fields, and
	// client-side TDF decryption as a storage adapter decorator.
	PlatformEndpoint             string
	TDFFulfillableObligationFQNs []string
	TDFInsecureSkipVerify        bool

	// ProofKeyEnforce requests strict X-WOPI-Proof / X-WOPI-ProofOld
	// signature verification. No signing keys can be configured, so setting
	// it only makes the server log a warning at startup; proof-key
	// validation stays permissive (AllowAllValidator) either way.
	ProofKeyEnforce bool
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	port := 8080
	if v := os.Getenv("WOPI_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid WOPI_PORT: %w", err)
		}
		port = p
	}

	useSSL := true
	if v := os.Getenv("S3_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid S3_USE_SSL: %w", err)
		}
		useSSL = b
	}

	forcePathStyle := true
	if v := os.Getenv("S3_FORCE_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid S3_FORCE_PATH_STYLE: %w", err)
		}
		forcePathStyle = b
	}

	s3BearerAuthEnabled := false
	if v := os.Getenv("S3_BEARER_AUTH_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid S3_BEARER_AUTH_ENABLED: %w", err)
		}
		s3BearerAuthEnabled = b
	}

	oidcEnabled := false
	if v := os.Getenv("OIDC_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid OIDC_ENABLED: %w", err)
		}
		oidcEnabled = b
	}

	tdfInsecureSkipVerify := false
	if v := os.Getenv("TDF_INSECURE_SKIP_VERIFY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TDF_INSECURE_SKIP_VERIFY: %w", err)
		}
		tdfInsecureSkipVerify = b
	}

	proofKeyEnforce := false
	if v := os.Getenv("PROOF_KEY_ENFORCE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PROOF_KEY_ENFORCE: %w", err)
		}
		proofKeyEnforce = b
	}

	cfg := &Config{
		Port:                 port,
		BaseURL:              getEnvOrDefault("WOPI_BASE_URL", fmt.Sprintf("http://localhost:%d", port)),
		MachineName:          os.Getenv("WOPI_MACHINE_NAME"),
		ServerVersion:        getEnvOrDefault("WOPI_SERVER_VERSION", "1.0"),
		StorageBackend:       getEnvOrDefault("WOPI_STORAGE_BACKEND", "local"),
		StorageRoot:          os.Getenv("WOPI_STORAGE_ROOT"),
		WOPIClientURL:        getEnvOrDefault("WOPI_CLIENT_URL", "http://localhost:9980"),
		WOPIClientEditorPath: getEnvOrDefault("WOPI_CLIENT_EDITOR_PATH", "/browser/dist/cool.html"),
		WOPISrcBaseURL:       os.Getenv("WOPI_SRC_BASE_URL"),

		S3Endpoint:        getEnvOrDefault("S3_ENDPOINT", "http://localhost:9000"),
		S3Region:          getEnvOrDefault("S3_REGION", "us-east-1"),
		S3Bucket:          getEnvOrDefault("S3_BUCKET", "wopi-documents"),
		S3AccessKeyID:     getEnvOrDefault("S3_ACCESS_KEY_ID", "minioadmin"),
		S3SecretAccessKey: getEnvOrDefault("S3_SECRET_ACCESS_KEY", "minioadmin"),
		S3UseSSL:          useSSL,
		S3ForcePathStyle:  forcePathStyle,

		S3BearerAuthEnabled:  s3BearerAuthEnabled,
		S3BearerTokenURL:     os.Getenv("S3_BEARER_TOKEN_URL"),
		S3BearerClientID:     os.Getenv("S3_BEARER_CLIENT_ID"),
		S3BearerClientSecret: os.Getenv("S3_BEARER_CLIENT_SECRET"),

		AccessTokenSecret: getEnvOrDefault("WOPI_ACCESS_TOKEN_SECRET", "change-me-in-production"),
		LockExpiration:    getEnvDuration("WOPI_LOCK_EXPIRATION", 30*time.Minute),

		OIDCEnabled:      oidcEnabled,
		OIDCIssuerURL:    os.Getenv("OIDC_ISSUER_URL"),
		OIDCClientID:     os.Getenv("OIDC_CLIENT_ID"),
		OIDCClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
		OIDCRedirectURL:  os.Getenv("OIDC_REDIRECT_URL"),
		SessionSecret:    os.Getenv("SESSION_SECRET"),

		PlatformEndpoint:             os.Getenv("PLATFORM_ENDPOINT"),
		TDFFulfillableObligationFQNs: splitAndTrim(os.Getenv("TDF_FULFILLABLE_OBLIGATION_FQNS")),
		TDFInsecureSkipVerify:        tdfInsecureSkipVerify,

		ProofKeyEnforce: proofKeyEnforce,
	}

	if cfg.StorageBackend != "s3" && cfg.StorageRoot == "" {
		return nil, fmt.Errorf("WOPI_STORAGE_ROOT is required when WOPI_STORAGE_BACKEND is not \"s3\"")
	}

	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required")
	}

	if cfg.S3BearerAuthEnabled {
		if cfg.S3BearerTokenURL == "" {
			return nil, fmt.Errorf("S3_BEARER_TOKEN_URL is required when S3_BEARER_AUTH_ENABLED is true")
		}
		if cfg.S3BearerClientID == "" {
			return nil, fmt.Errorf("S3_BEARER_CLIENT_ID is required when S3_BEARER_AUTH_ENABLED is true")
		}
		if cfg.S3BearerClientSecret == "" {
			return nil, fmt.Errorf("S3_BEARER_CLIENT_SECRET is required when S3_BEARER_AUTH_ENABLED is true")
		}
	}

	if cfg.OIDCEnabled {
		if cfg.OIDCIssuerURL == "" {
			return nil, fmt.Errorf("OIDC_ISSUER_URL is required when OIDC_ENABLED is true")
		}
		if cfg.SessionSecret == "" {
			return nil, fmt.Errorf("SESSION_SECRET is required when OIDC_ENABLED is true")
		}
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// splitAndTrim splits a comma-separated list, trims whitespace from each
// element, and drops any that are empty after trimming.
func splitAndTrim(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
