package domain

import "time"

// Config is the subset of configuration the services consume.
type Config struct {
	AccessTokenSecret      string
	AccessTokenTTL         time.Duration
	RefreshTokenSecret     string
	RefreshTokenTTL        time.Duration
	RequireWalletSignature bool
	SecureCookies          bool
}
