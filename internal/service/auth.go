package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"

	"github.com/dvote-dapp/dvote/internal/domain"
	"github.com/dvote-dapp/dvote/jwt"
)

var tracer = otel.Tracer("auth")

type AuthService struct {
	config *domain.Config
	now    func() time.Time
}

func NewAuthService(config *domain.Config) *AuthService {
	return &AuthService{
		config: config,
		now:    time.Now,
	}
}

type AuthResult struct {
	AccountID string
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *AuthService) ComparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// IssueTokens creates the access and refresh token pair for an account.
func (s *AuthService) IssueTokens(account domain.Account) (domain.TokenPair, error) {
	now := s.now()

	access, err := jwt.Create(jwt.Claims{
		AccountID:          account.ID,
		Email:              account.Email,
		Fullname:           account.Fullname,
		WalletAddress:      account.WalletAddress,
		IsVotingTopicOwner: account.IsVotingTopicOwner,
	}, []byte(s.config.AccessTokenSecret), s.config.AccessTokenTTL, now)
	if err != nil {
		return domain.TokenPair{}, errors.Wrap(err, "create access token")
	}

	refresh, err := jwt.Create(jwt.Claims{
		AccountID: account.ID,
	}, []byte(s.config.RefreshTokenSecret), s.config.RefreshTokenTTL, now)
	if err != nil {
		return domain.TokenPair{}, errors.Wrap(err, "create refresh token")
	}

	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) AuthJwt(ctx context.Context, token string) (*AuthResult, error) {
	_, span := tracer.Start(ctx, "Auth.Service.AuthJwt")
	defer span.End()

	claims, err := jwt.Validate(token, []byte(s.config.AccessTokenSecret))
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return nil, domain.UnauthenticatedError{Reason: "Invalid access token."}
	}

	return &AuthResult{AccountID: claims.AccountID}, nil
}
