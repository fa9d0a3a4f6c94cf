package usecase

import (
	"context"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/dvote-dapp/dvote/internal/domain"
)

var fullnamePattern = regexp.MustCompile(`^[A-Za-z]+(?:[ '-][A-Za-z]+)*$`)

const minPasswordLength = 8

// RegisterInput is the input for creating an account.
type RegisterInput struct {
	Fullname      string
	Email         string
	WalletAddress string
	Password      string
	Avatar        string
}

// DeclareInput is the input for declaring a voting topic.
type DeclareInput struct {
	VotingTopicID   string
	VotingTopicName string
}

type AccountUsecase struct {
	accounts AccountRepository
	topics   TopicRepository
	hasher   PasswordHasher
	issuer   TokenIssuer
	options
}

func NewAccountUsecase(
	accounts AccountRepository,
	topics TopicRepository,
	hasher PasswordHasher,
	issuer TokenIssuer,
	opts ...Option,
) *AccountUsecase {
	return &AccountUsecase{
		accounts: accounts,
		topics:   topics,
		hasher:   hasher,
		issuer:   issuer,
		options:  buildOptions("account", opts),
	}
}

func (uc *AccountUsecase) Get(ctx context.Context, id string) (domain.Account, error) {
	return uc.accounts.Get(ctx, id)
}

func (uc *AccountUsecase) Register(ctx context.Context, input RegisterInput) (domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Account.Usecase.Register")
	defer span.End()

	fullname := strings.TrimSpace(input.Fullname)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	wallet := strings.TrimSpace(input.WalletAddress)

	if fullname == "" || email == "" || wallet == "" || input.Password == "" {
		return domain.Account{}, domain.ValidationError{Reason: "All fields are required."}
	}
	if !fullnamePattern.MatchString(fullname) {
		return domain.Account{}, domain.ValidationError{Reason: "Full name may only contain letters, spaces, apostrophes and hyphens."}
	}
	if !strings.Contains(email, "@") {
		return domain.Account{}, domain.ValidationError{Reason: "Email address is invalid."}
	}
	if !common.IsHexAddress(wallet) {
		return domain.Account{}, domain.ValidationError{Reason: "Wallet address is invalid."}
	}
	if len(input.Password) < minPasswordLength {
		return domain.Account{}, domain.ValidationError{Reason: "Password must be at least 8 characters long."}
	}

	hash, err := uc.hasher.HashPassword(input.Password)
	if err != nil {
		return domain.Account{}, errors.Wrap(err, "hash password")
	}

	account, err := uc.accounts.Create(ctx, domain.Account{
		Fullname:      fullname,
		Email:         email,
		WalletAddress: common.HexToAddress(wallet).Hex(),
		PasswordHash:  hash,
		Avatar:        strings.TrimSpace(input.Avatar),
	})
	if err != nil {
		span.RecordError(err)
		return domain.Account{}, err
	}
	return account, nil
}

// Login checks the credentials and issues a fresh token pair. The refresh
// token is stored on the account.
func (uc *AccountUsecase) Login(ctx context.Context, email, password string) (domain.Account, domain.TokenPair, error) {
	ctx, span := tracer.Start(ctx, "Account.Usecase.Login")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.Account{}, domain.TokenPair{}, domain.ValidationError{Reason: "Email and password are required."}
	}

	account, err := uc.accounts.GetByEmail(ctx, email)
	if err != nil {
		return domain.Account{}, domain.TokenPair{}, err
	}
	if err := uc.hasher.ComparePassword(account.PasswordHash, password); err != nil {
		return domain.Account{}, domain.TokenPair{}, domain.UnauthenticatedError{Reason: "Invalid email or password."}
	}

	tokens, err := uc.issuer.IssueTokens(account)
	if err != nil {
		span.RecordError(err)
		return domain.Account{}, domain.TokenPair{}, errors.Wrap(err, "issue tokens")
	}
	if err := uc.accounts.SetRefreshToken(ctx, account.ID, &tokens.RefreshToken); err != nil {
		return domain.Account{}, domain.TokenPair{}, err
	}
	account.RefreshToken = &tokens.RefreshToken

	return account, tokens, nil
}

func (uc *AccountUsecase) Logout(ctx context.Context, accountID string) error {
	return uc.accounts.SetRefreshToken(ctx, accountID, nil)
}

// DeclareTopic creates a topic with an empty result and makes the caller its owner.
func (uc *AccountUsecase) DeclareTopic(ctx context.Context, callerID string, input DeclareInput) (domain.Result, error) {
	ctx, span := tracer.Start(ctx, "Account.Usecase.DeclareTopic")
	defer span.End()

	input.VotingTopicID = strings.TrimSpace(input.VotingTopicID)
	input.VotingTopicName = strings.TrimSpace(input.VotingTopicName)
	if input.VotingTopicID == "" || input.VotingTopicName == "" {
		return domain.Result{}, domain.ValidationError{Reason: "votingTopicId and votingTopicName are required."}
	}

	if _, err := uc.accounts.Get(ctx, callerID); err != nil {
		return domain.Result{}, err
	}

	result, err := uc.topics.Declare(ctx, domain.Topic{
		ID:        input.VotingTopicID,
		Name:      input.VotingTopicName,
		OwnerID:   callerID,
		CreatedAt: uc.clock.Now(),
	})
	if err != nil {
		span.RecordError(err)
		return domain.Result{}, err
	}
	return result, nil
}
