package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dvote-dapp/dvote/internal/domain"
	"github.com/dvote-dapp/dvote/internal/infra/database/models"
)

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func ensureHistory(tx *gorm.DB, accountID string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoNothing: true,
	}).Create(&models.VoteHistory{AccountID: accountID}).Error
}

func (r *HistoryRepository) Ensure(ctx context.Context, accountID string) error {
	return ensureHistory(r.db.WithContext(ctx), accountID)
}

func (r *HistoryRepository) Get(ctx context.Context, accountID string) (domain.History, error) {
	var history models.VoteHistory
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Take(&history).Error
	if err != nil {
		return domain.History{}, notFound(err, "voting history")
	}

	var rows []models.VoteHistoryEntry
	err = r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return domain.History{}, err
	}

	entries := make([]domain.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, historyEntryToDomain(row))
	}
	return domain.History{AccountID: accountID, Entries: entries}, nil
}

func historyEntryToDomain(m models.VoteHistoryEntry) domain.HistoryEntry {
	return domain.HistoryEntry{
		VotingTopicID:   m.VotingTopicID,
		TopicName:       m.TopicName,
		VotedTo:         m.VotedTo,
		CandidateName:   m.CandidateName,
		VoteCountAtTime: m.VoteCountAtTime,
		VotedAt:         m.VotedAt,
	}
}
