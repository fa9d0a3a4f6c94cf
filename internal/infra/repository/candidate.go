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

type CandidateRepository struct {
	db *gorm.DB
}

func NewCandidateRepository(db *gorm.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

func candidacyToDomain(m models.CandidacyEntry) domain.CandidacyEntry {
	return domain.CandidacyEntry{
		VotingTopicID: m.VotingTopicID,
		CandidateID:   m.CandidateID,
		Name:          m.Name,
		Party:         m.Party,
		Bio:           m.Bio,
		VoteCount:     m.VoteCount,
		IsApproved:    m.IsApproved,
		ApprovedAt:    m.ApprovedAt,
	}
}

func (r *CandidateRepository) GetProfile(ctx context.Context, accountID string) (domain.CandidateProfile, error) {
	var row models.CandidateProfile
	err := r.db.WithContext(ctx).
		Preload("Candidacies", func(db *gorm.DB) *gorm.DB {
			return db.Order("voting_topic_id")
		}).
		Where("account_id = ?", accountID).
		Take(&row).Error
	if err != nil {
		return domain.CandidateProfile{}, notFound(err, "candidate profile")
	}

	candidacies := make([]domain.CandidacyEntry, 0, len(row.Candidacies))
	for _, c := range row.Candidacies {
		candidacies = append(candidacies, candidacyToDomain(c))
	}
	return domain.CandidateProfile{
		ID:          row.ID,
		AccountID:   row.AccountID,
		Candidacies: candidacies,
		CreatedAt:   row.CDate,
		UpdatedAt:   row.MDate,
	}, nil
}

func (r *CandidateRepository) Apply(ctx context.Context, accountID string, entry domain.CandidacyEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoNothing: true,
		}).Create(&models.CandidateProfile{ID: uuid.NewString(), AccountID: accountID}).Error
		if err != nil {
			return errors.Wrap(err, "ensure candidate profile")
		}

		var profile models.CandidateProfile
		if err := tx.Where("account_id = ?", accountID).Take(&profile).Error; err != nil {
			return err
		}

		err = tx.Create(&models.CandidacyEntry{
			ProfileID:     profile.ID,
			VotingTopicID: entry.VotingTopicID,
			Party:         entry.Party,
			Bio:           entry.Bio,
		}).Error
		if isDuplicateKey(err) {
			return domain.ConflictError{Reason: "You have already applied as a candidate for this topic."}
		}
		return err
	})
}

type candidateListingRow struct {
	ProfileID     string
	CandidateID   *string
	VotingTopicID string
	Party         string
	Bio           string
	VoteCount     int64
	ApprovedAt    *time.Time
	Fullname      string
	Email         string
	Avatar        string
}

func (row candidateListingRow) toDomain() domain.CandidateListing {
	l := domain.CandidateListing{
		ProfileID:     row.ProfileID,
		VotingTopicID: row.VotingTopicID,
		Party:         row.Party,
		Bio:           row.Bio,
		VoteCount:     row.VoteCount,
		UserFullName:  row.Fullname,
		UserEmail:     row.Email,
		Avatar:        row.Avatar,
		ApprovedAt:    row.ApprovedAt,
	}
	if row.CandidateID != nil {
		l.CandidateID = *row.CandidateID
	}
	return l
}

func (r *CandidateRepository) listingQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("candidacy_entries AS c").
		Select("c.profile_id, c.candidate_id, c.voting_topic_id, c.party, c.bio, c.vote_count, c.approved_at, a.fullname, a.email, a.avatar").
		Joins("JOIN candidate_profiles p ON p.id = c.profile_id").
		Joins("JOIN accounts a ON a.id = p.account_id")
}

func (r *CandidateRepository) FindApproved(ctx context.Context, votingTopicID, candidateID string) (domain.CandidateListing, error) {
	var rows []candidateListingRow
	err := r.listingQuery(ctx).
		Where("c.voting_topic_id = ? AND c.candidate_id = ? AND c.is_approved = ?", votingTopicID, candidateID, true).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return domain.CandidateListing{}, err
	}
	if len(rows) == 0 {
		return domain.CandidateListing{}, domain.NotFoundError{Resource: "approved candidate"}
	}
	return rows[0].toDomain(), nil
}

func (r *CandidateRepository) List(ctx context.Context, votingTopicID string, approved bool) ([]domain.CandidateListing, error) {
	var rows []candidateListingRow
	err := r.listingQuery(ctx).
		Where("c.voting_topic_id = ? AND c.is_approved = ?", votingTopicID, approved).
		Order("a.fullname").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	listings := make([]domain.CandidateListing, 0, len(rows))
	for _, row := range rows {
		listings = append(listings, row.toDomain())
	}
	return listings, nil
}

func (r *CandidateRepository) CandidateIDExists(ctx context.Context, candidateID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CandidacyEntry{}).
		Where("candidate_id = ?", candidateID).
		Count(&count).Error
	return count > 0, err
}

func (r *CandidateRepository) Approve(ctx context.Context, profileID, votingTopicID, candidateID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.CandidacyEntry{}).
		Where("profile_id = ? AND voting_topic_id = ? AND is_approved = ?", profileID, votingTopicID, false).
		Updates(map[string]any{
			"candidate_id": candidateID,
			"is_approved":  true,
			"approved_at":  at,
		})
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return domain.ConflictError{Reason: "candidate id already assigned"}
		}
		return errors.Wrap(result.Error, "approve candidacy")
	}
	if result.RowsAffected == 0 {
		return domain.ConflictError{Reason: "Candidate is already approved."}
	}
	return nil
}

func (r *CandidateRepository) CountApproved(ctx context.Context, votingTopicID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CandidacyEntry{}).
		Where("voting_topic_id = ? AND is_approved = ?", votingTopicID, true).
		Count(&count).Error
	return count, err
}

func (r *CandidateRepository) SyncTally(ctx context.Context, votingTopicID string, candidate domain.ChainCandidate) (bool, error) {
	return syncTally(r.db.WithContext(ctx), votingTopicID, candidate)
}

func syncTally(tx *gorm.DB, votingTopicID string, candidate domain.ChainCandidate) (bool, error) {
	result := tx.Model(&models.CandidacyEntry{}).
		Where("voting_topic_id = ? AND candidate_id = ?", votingTopicID, candidate.ID).
		Updates(map[string]any{
			"vote_count": candidate.VoteCount,
			"name":       candidate.Name,
		})
	return result.RowsAffected > 0, result.Error
}
