package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dvote-dapp/dvote/internal/domain"
	"github.com/dvote-dapp/dvote/internal/infra/database/models"
)

// BallotRepository records votes. The voter flag, the tally and the history
// entry are written in one transaction so a vote is all or nothing.
type BallotRepository struct {
	db *gorm.DB
}

func NewBallotRepository(db *gorm.DB) *BallotRepository {
	return &BallotRepository{db: db}
}

func (r *BallotRepository) Cast(ctx context.Context, ballot domain.Ballot) (domain.HistoryEntry, error) {
	var recorded models.VoteHistoryEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// compare-and-set on has_voted; a concurrent second vote matches no row
		flag := tx.Model(&models.VoterTopicEntry{}).
			Where("profile_id = ? AND voting_topic_id = ?", ballot.ProfileID, ballot.VotingTopicID).
			Where("is_verified = ? AND voting_permission = ? AND has_voted = ?", true, true, false).
			Updates(map[string]any{
				"has_voted": true,
				"voted_to":  ballot.CandidateID,
				"voted_at":  ballot.CastAt,
			})
		if flag.Error != nil {
			return errors.Wrap(flag.Error, "mark voted")
		}
		if flag.RowsAffected == 0 {
			return domain.ForbiddenError{Reason: "You have already cast your vote for this topic."}
		}

		tally := tx.Model(&models.CandidacyEntry{}).
			Where("voting_topic_id = ? AND candidate_id = ? AND is_approved = ?", ballot.VotingTopicID, ballot.CandidateID, true).
			UpdateColumn("vote_count", gorm.Expr("vote_count + ?", 1))
		if tally.Error != nil {
			return errors.Wrap(tally.Error, "increment tally")
		}
		if tally.RowsAffected == 0 {
			return domain.NotFoundError{Resource: "approved candidate"}
		}

		var candidacy models.CandidacyEntry
		err := tx.Select("vote_count").
			Where("voting_topic_id = ? AND candidate_id = ?", ballot.VotingTopicID, ballot.CandidateID).
			Take(&candidacy).Error
		if err != nil {
			return errors.Wrap(err, "read tally")
		}

		if err := ensureHistory(tx, ballot.AccountID); err != nil {
			return errors.Wrap(err, "ensure history")
		}

		recorded = models.VoteHistoryEntry{
			AccountID:       ballot.AccountID,
			VotingTopicID:   ballot.VotingTopicID,
			TopicName:       ballot.TopicName,
			VotedTo:         ballot.CandidateID,
			CandidateName:   ballot.CandidateName,
			VoteCountAtTime: candidacy.VoteCount,
			VotedAt:         ballot.CastAt,
		}
		return tx.Create(&recorded).Error
	})
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	return historyEntryToDomain(recorded), nil
}
