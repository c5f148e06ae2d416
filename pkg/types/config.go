package types

type Config struct {
	Environment      string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
	ServerPort       uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL      string `envconfig:"DATABASE_URL"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	ReadTimeoutSec   uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec  uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"15"`

	// Cognito Auth
	CognitoUserPoolID string `envconfig:"COGNITO_USER_POOL_ID"`
	CognitoClientID   string `envconfig:"COGNITO_CLIENT_ID"`
	CognitoIssuerURL  string `envconfig:"COGNITO_ISSUER_URL"`

	// Group claims that grant reviewer powers (approve, reject, confirm transfer, complete)
	ReviewerGroups []string `envconfig:"REVIEWER_GROUPS" default:"fiscal_council,admin"`

	// Evidence storage
	EvidenceBucket     string `envconfig:"EVIDENCE_BUCKET" default:"orbe-evidence"`
	EvidenceKeyPrefix  string `envconfig:"EVIDENCE_KEY_PREFIX" default:"cases"`
	PresignTTLSec      uint   `envconfig:"PRESIGN_TTL_SEC" default:"300"`
	MaxUploadSizeBytes int64  `envconfig:"MAX_UPLOAD_SIZE_BYTES" default:"5242880"`

	// Rate limit for mutating routes, ulule/limiter format e.g. "30-M"
	RateLimit string `envconfig:"RATE_LIMIT" default:"30-M"`

	// Auth Configuration
	SessionMaxAgeSec int `envconfig:"SESSION_MAX_AGE_SEC" default:"604800"` // 7 days

	// Cookie encryption keys (base64 encoded)
	// openssl rand -base64 32
	// to generate values
	CookieHashKey  string `envconfig:"COOKIE_HASH_KEY"`  // 32 or 64 bytes
	CookieBlockKey string `envconfig:"COOKIE_BLOCK_KEY"` // 16, 24, or 32 bytes
}
