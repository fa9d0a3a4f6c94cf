package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dvote-dapp/dvote/internal/domain"
	"github.com/dvote-dapp/dvote/internal/infra/database/models"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func accountToDomain(m models.Account) domain.Account {
	return domain.Account{
		ID:                 m.ID,
		Fullname:           m.Fullname,
		Email:              m.Email,
		WalletAddress:      m.WalletAddress,
		PasswordHash:       m.PasswordHash,
		RefreshToken:       m.RefreshToken,
		Avatar:             m.Avatar,
		IsVotingTopicOwner: m.IsVotingTopicOwner,
		ProfileID:          m.ProfileID,
		CreatedAt:          m.CDate,
		UpdatedAt:          m.MDate,
	}
}

func (r *AccountRepository) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	row := models.Account{
		ID:            uuid.NewString(),
		Fullname:      account.Fullname,
		Email:         account.Email,
		WalletAddress: account.WalletAddress,
		PasswordHash:  account.PasswordHash,
		Avatar:        account.Avatar,
	}

	err := r.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		if isDuplicateKey(err) {
			return domain.Account{}, domain.ConflictError{Reason: "The user with the email or wallet address already exists."}
		}
		return domain.Account{}, errors.Wrap(err, "create account")
	}

	return accountToDomain(row), nil
}

func (r *AccountRepository) take(ctx context.Context, query string, args ...any) (domain.Account, error) {
	var row models.Account
	err := r.db.WithContext(ctx).Where(query, args...).Take(&row).Error
	if err != nil {
		return domain.Account{}, notFound(err, "account")
	}
	return accountToDomain(row), nil
}

func (r *AccountRepository) Get(ctx context.Context, id string) (domain.Account, error) {
	return r.take(ctx, "id = ?", id)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.take(ctx, "email = ?", email)
}

// GetByWallet matches the address case-insensitively.
func (r *AccountRepository) GetByWallet(ctx context.Context, wallet string) (domain.Account, error) {
	return r.take(ctx, "LOWER(wallet_address) = LOWER(?)", wallet)
}

func (r *AccountRepository) GetByNameAndEmail(ctx context.Context, fullname, email string) (domain.Account, error) {
	return r.take(ctx, "fullname = ? AND email = ?", fullname, email)
}

func (r *AccountRepository) SetProfile(ctx context.Context, id, profileID string) error {
	return r.update(ctx, id, "profile_id", profileID)
}

func (r *AccountRepository) SetRefreshToken(ctx context.Context, id string, token *string) error {
	return r.update(ctx, id, "refresh_token", token)
}

func (r *AccountRepository) update(ctx context.Context, id, column string, value any) error {
	result := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Update(column, value)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "update account %s", column)
	}
	if result.RowsAffected == 0 {
		// mysql reports zero rows when the value is unchanged
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
