package jwt

import (
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v4"
)

const Issuer = "dvote"

// Claims is the payload of access and refresh tokens. Refresh tokens only carry
// the registered claims and the account id.
type Claims struct {
	AccountID          string `json:"_id"`
	Email              string `json:"email,omitempty"`
	Fullname           string `json:"fullname,omitempty"`
	WalletAddress      string `json:"walletAddress,omitempty"`
	IsVotingTopicOwner bool   `json:"isVotingTopicOwner,omitempty"`
	gojwt.RegisteredClaims
}

// Create signs claims with HS256, stamping issuer, subject and expiry.
func Create(claims Claims, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("jwt secret is empty")
	}
	claims.Issuer = Issuer
	claims.Subject = claims.AccountID
	claims.IssuedAt = gojwt.NewNumericDate(now)
	claims.ExpiresAt = gojwt.NewNumericDate(now.Add(ttl))

	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(secret)
}

// Validate checks the signature, algorithm, issuer and expiry of a token.
func Validate(token string, secret []byte) (*Claims, error) {
	var claims Claims
	parsed, err := gojwt.ParseWithClaims(token, &claims, func(t *gojwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Issuer != Issuer {
		return nil, fmt.Errorf("invalid issuer %q", claims.Issuer)
	}
	if claims.AccountID == "" {
		return nil, fmt.Errorf("token carries no account")
	}
	return &claims, nil
}
