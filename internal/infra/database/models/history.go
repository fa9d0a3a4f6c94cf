package models

import "time"

type VoteHistory struct {
	AccountID string    `json:"accountId" gorm:"primaryKey;type:varchar(36)"`
	CDate     time.Time `json:"cdate" gorm:"autoCreateTime"`
}

// VoteHistoryEntry is append-only.
type VoteHistoryEntry struct {
	ID              int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	AccountID       string    `json:"accountId" gorm:"type:varchar(36);not null;index"`
	VotingTopicID   string    `json:"votingTopicId" gorm:"type:varchar(191);not null;index"`
	TopicName       string    `json:"topicName" gorm:"type:varchar(255)"`
	VotedTo         string    `json:"votedTo" gorm:"type:varchar(64);not null"`
	CandidateName   string    `json:"candidateName" gorm:"type:varchar(255)"`
	VoteCountAtTime int64     `json:"voteCountAtTime" gorm:"not null"`
	VotedAt         time.Time `json:"votedAt" gorm:"not null"`
}
