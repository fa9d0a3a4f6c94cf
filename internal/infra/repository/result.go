package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dvote-dapp/dvote/internal/domain"
	"github.com/dvote-dapp/dvote/internal/infra/database/models"
	"github.com/dvote-dapp/dvote/internal/usecase"
)

type ResultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func resultToDomain(m models.Result) domain.Result {
	return domain.Result{
		VotingTopicID:   m.VotingTopicID,
		VotingTopicName: m.VotingTopicName,
		WinnerID:        m.WinnerID,
		WinnerName:      m.WinnerName,
		TotalVotes:      m.TotalVotes,
		PublishedAt:     m.PublishedAt,
	}
}

func (r *ResultRepository) Get(ctx context.Context, votingTopicID string) (domain.Result, error) {
	var row models.Result
	err := r.db.WithContext(ctx).Where("voting_topic_id = ?", votingTopicID).Take(&row).Error
	if err != nil {
		return domain.Result{}, notFound(err, "result")
	}
	return resultToDomain(row), nil
}

// Publish never creates a result; a topic without one fails with NotFoundError.
func (r *ResultRepository) Publish(ctx context.Context, input usecase.PublishInput) (domain.Result, error) {
	var row models.Result
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("voting_topic_id = ?", input.VotingTopicID).
			Take(&row).Error
		if err != nil {
			return notFound(err, "result")
		}

		for _, tally := range input.Tallies {
			if _, err := syncTally(tx, input.VotingTopicID, tally); err != nil {
				return errors.Wrap(err, "sync tally")
			}
		}

		winnerID, winnerName, at := input.Winner.ID, input.Winner.Name, input.PublishedAt
		row.WinnerID = &winnerID
		row.WinnerName = &winnerName
		// total votes is the winner's on-chain count
		row.TotalVotes = input.Winner.VoteCount
		row.PublishedAt = &at

		err = tx.Model(&row).Select("winner_id", "winner_name", "total_votes", "published_at").Updates(&row).Error
		if err != nil {
			return errors.Wrap(err, "update result")
		}

		_, err = setVotingPermission(tx, input.VotingTopicID, false)
		return err
	})
	if err != nil {
		return domain.Result{}, err
	}
	return resultToDomain(row), nil
}
