package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dvote-dapp/dvote/internal/domain"
	"github.com/dvote-dapp/dvote/internal/infra/database/models"
)

type VoterRepository struct {
	db *gorm.DB
}

func NewVoterRepository(db *gorm.DB) *VoterRepository {
	return &VoterRepository{db: db}
}

func voterProfileToDomain(m models.VoterProfile) domain.VoterProfile {
	entries := make([]domain.VoterTopicEntry, 0, len(m.Entries))
	for _, e := range m.Entries {
		entries = append(entries, domain.VoterTopicEntry{
			VotingTopicID:    e.VotingTopicID,
			VoterID:          e.VoterID,
			IsRegistered:     e.IsRegistered,
			IsVerified:       e.IsVerified,
			HasVoted:         e.HasVoted,
			VotingPermission: e.VotingPermission,
			VotedTo:          e.VotedTo,
			VerifiedAt:       e.VerifiedAt,
			VotedAt:          e.VotedAt,
		})
	}
	return domain.VoterProfile{
		ID:           m.ID,
		AccountID:    m.AccountID,
		VotingTopics: entries,
		CreatedAt:    m.CDate,
		UpdatedAt:    m.MDate,
	}
}

func (r *VoterRepository) GetProfile(ctx context.Context, accountID string) (domain.VoterProfile, error) {
	var row models.VoterProfile
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("voting_topic_id")
		}).
		Where("account_id = ?", accountID).
		Take(&row).Error
	if err != nil {
		return domain.VoterProfile{}, notFound(err, "voter profile")
	}
	return voterProfileToDomain(row), nil
}

func ensureVoterProfile(tx *gorm.DB, accountID string) (models.VoterProfile, error) {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoNothing: true,
	}).Create(&models.VoterProfile{ID: uuid.NewString(), AccountID: accountID}).Error
	if err != nil {
		return models.VoterProfile{}, err
	}

	var profile models.VoterProfile
	err = tx.Where("account_id = ?", accountID).Take(&profile).Error
	return profile, err
}

func (r *VoterRepository) Register(ctx context.Context, accountID, votingTopicID, voterID string) (domain.VoterProfile, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile, err := ensureVoterProfile(tx, accountID)
		if err != nil {
			return errors.Wrap(err, "ensure voter profile")
		}

		entry := models.VoterTopicEntry{
			ProfileID:     profile.ID,
			VotingTopicID: votingTopicID,
			VoterID:       voterID,
			IsRegistered:  true,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "profile_id"}, {Name: "voting_topic_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"voter_id":      voterID,
				"is_registered": true,
			}),
		}).Create(&entry).Error
	})
	if err != nil {
		return domain.VoterProfile{}, err
	}
	return r.GetProfile(ctx, accountID)
}

func (r *VoterRepository) MarkVerified(ctx context.Context, profileID, votingTopicID string, at time.Time, permission bool) error {
	return r.db.WithContext(ctx).
		Model(&models.VoterTopicEntry{}).
		Where("profile_id = ? AND voting_topic_id = ? AND is_verified = ?", profileID, votingTopicID, false).
		Updates(map[string]any{
			"is_verified":       true,
			"verified_at":       at,
			"voting_permission": permission,
		}).Error
}

func (r *VoterRepository) CountVerified(ctx context.Context, votingTopicID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.VoterTopicEntry{}).
		Where("voting_topic_id = ? AND is_verified = ?", votingTopicID, true).
		Count(&count).Error
	return count, err
}

type voterListingRow struct {
	ProfileID     string
	VoterID       string
	VotingTopicID string
	Fullname      string
	Email         string
	WalletAddress string
	Avatar        string
}

func (r *VoterRepository) List(ctx context.Context, votingTopicID string, verified bool) ([]domain.VoterListing, error) {
	var rows []voterListingRow
	err := r.db.WithContext(ctx).
		Table("voter_topic_entries AS e").
		Select("e.profile_id, e.voter_id, e.voting_topic_id, a.fullname, a.email, a.wallet_address, a.avatar").
		Joins("JOIN voter_profiles p ON p.id = e.profile_id").
		Joins("JOIN accounts a ON a.id = p.account_id").
		Where("e.voting_topic_id = ? AND e.is_verified = ?", votingTopicID, verified).
		Order("a.fullname").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	listings := make([]domain.VoterListing, 0, len(rows))
	for _, row := range rows {
		listings = append(listings, domain.VoterListing{
			ProfileID:     row.ProfileID,
			VoterID:       row.VoterID,
			VotingTopicID: row.VotingTopicID,
			UserFullName:  row.Fullname,
			UserEmail:     row.Email,
			WalletAddress: row.WalletAddress,
			Avatar:        row.Avatar,
		})
	}
	return listings, nil
}

// setVotingPermission applies permission to the topic row and every verified entry.
func setVotingPermission(tx *gorm.DB, votingTopicID string, permission bool) (int64, error) {
	err := tx.Model(&models.Topic{}).
		Where("id = ?", votingTopicID).
		Update("voting_permission", permission).Error
	if err != nil {
		return 0, err
	}

	result := tx.Model(&models.VoterTopicEntry{}).
		Where("voting_topic_id = ? AND is_verified = ?", votingTopicID, true).
		Update("voting_permission", permission)
	return result.RowsAffected, result.Error
}
