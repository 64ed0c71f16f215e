package params

import "time"

const (
	ServerBodyLimit           = 1048576 // 1 MiB
	ServerIdleTimeout         = 30 * time.Second
	ServerReadTimeout         = 10 * time.Second
	ServerWriteTimeout        = 10 * time.Second
	AuthSessionKeyPrefix      = "as:"
	AuthCodeKeyPrefix         = "ac:"
	UserStateKeyPrefix        = "u:"
	MasterRealmName           = "master"
	DefaultAdminClientID      = "admin-cli"
	DefaultSigningAlgorithm   = "RS256"
	AuthSessionExpiration     = 10 * time.Minute // authorization code flow session lifetime
	AccessTokenExpiration     = 3600 * time.Second
	RefreshTokenExpiration    = 86400 * time.Second
	RSAKeyBits                = 2048
	KeyCacheSize              = 1024 // parsed realm keys kept in memory
	ClientSecretLength        = 32   // length of generated confidential client secrets
	AuthorizationCodeLength   = 32
	TOTPSecretSize            = 20 // raw bytes before base32 encoding
	TOTPPeriod                = 30
	TOTPSkew                  = 1 // accepted time steps before and after the current one
	RecoveryCodeLength        = 10
	RecoveryCodeAmount        = 10
	TwoFactorMaxFailCount     = 10               // failed TOTP or recovery code attempts before lockout
	TwoFactorLockDuration     = 15 * time.Minute // lockout duration once the fail count is exceeded
	TwoFactorStateMaxAge      = 24 * time.Hour   // time to live for user state
	WebhookQueueSize          = 256
	WebhookWorkers            = 4
	WebhookRequestTimeout     = 10 * time.Second
	WebhookMaxRetries         = 3
	TokenEndpointRateLimit    = 60 // requests per client IP per window
	TokenEndpointRateWindow   = 1 * time.Minute
	HealthCheckServerAddr     = ":3001" // health check server address
	RealmClientSuffix         = "-realm"
	ServiceAccountUserPrefix  = "service-account-"
	DefaultAudienceAccount    = "account"
	AuthSessionCookieName     = "AUTH_SESSION_ID"
	OpenIDConnectProtocol     = "openid-connect"
	RealmAdminRoleNameSuffix  = "-realm-admin"
	DefaultRecoveryCodeFormat = "b32_split4"
	AuditEventRetention       = 90 * 24 * time.Hour
)
