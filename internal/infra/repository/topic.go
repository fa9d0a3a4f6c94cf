package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dvote-dapp/dvote/internal/domain"
	"github.com/dvote-dapp/dvote/internal/infra/database/models"
)

type TopicRepository struct {
	db *gorm.DB
}

func NewTopicRepository(db *gorm.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

func topicToDomain(m models.Topic) domain.Topic {
	return domain.Topic{
		ID:               m.ID,
		Name:             m.Name,
		OwnerID:          m.OwnerID,
		VotingPermission: m.VotingPermission,
		CreatedAt:        m.CDate,
	}
}

func (r *TopicRepository) Declare(ctx context.Context, topic domain.Topic) (domain.Result, error) {
	var result models.Result
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Create(&models.Topic{
			ID:      topic.ID,
			Name:    topic.Name,
			OwnerID: topic.OwnerID,
			CDate:   topic.CreatedAt,
		}).Error
		if isDuplicateKey(err) {
			return domain.ConflictError{Reason: "Voting with this ID already exists."}
		}
		if err != nil {
			return errors.Wrap(err, "create topic")
		}

		result = models.Result{
			VotingTopicID:   topic.ID,
			VotingTopicName: topic.Name,
		}
		err = tx.Create(&result).Error
		if isDuplicateKey(err) {
			return domain.ConflictError{Reason: "Voting with this ID already exists."}
		}
		if err != nil {
			return errors.Wrap(err, "create result")
		}

		// rows affected is unreliable on mysql when the flag is already set
		var owner models.Account
		if err := tx.Select("id").Where("id = ?", topic.OwnerID).Take(&owner).Error; err != nil {
			return notFound(err, "account")
		}
		err = tx.Model(&models.Account{}).
			Where("id = ?", topic.OwnerID).
			Update("is_voting_topic_owner", true).Error
		if err != nil {
			return errors.Wrap(err, "elevate owner")
		}
		return nil
	})
	if err != nil {
		return domain.Result{}, err
	}
	return resultToDomain(result), nil
}

func (r *TopicRepository) Get(ctx context.Context, votingTopicID string) (domain.Topic, error) {
	var row models.Topic
	err := r.db.WithContext(ctx).Where("id = ?", votingTopicID).Take(&row).Error
	if err != nil {
		return domain.Topic{}, notFound(err, "voting topic")
	}
	return topicToDomain(row), nil
}

func (r *TopicRepository) SetVotingPermission(ctx context.Context, votingTopicID string, permission bool) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var topic models.Topic
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", votingTopicID).
			Take(&topic).Error
		if err != nil {
			return notFound(err, "voting topic")
		}

		affected, err = setVotingPermission(tx, votingTopicID, permission)
		return err
	})
	return affected, err
}
