package models

import "time"

type VoterProfile struct {
	ID        string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AccountID string            `json:"accountId" gorm:"type:varchar(36);not null;uniqueIndex"`
	Entries   []VoterTopicEntry `json:"entries" gorm:"foreignKey:ProfileID;references:ID;constraint:OnDelete:RESTRICT;"`
	CDate     time.Time         `json:"cdate" gorm:"autoCreateTime"`
	MDate     time.Time         `json:"mdate" gorm:"autoUpdateTime"`
}

// VoterTopicEntry holds at most one row per (profile, topic).
type VoterTopicEntry struct {
	ProfileID        string     `json:"profileId" gorm:"primaryKey;type:varchar(36)"`
	VotingTopicID    string     `json:"votingTopicId" gorm:"primaryKey;type:varchar(191);index"`
	VoterID          string     `json:"voterId" gorm:"type:varchar(191);not null"`
	IsRegistered     bool       `json:"isRegistered" gorm:"not null;default:false"`
	IsVerified       bool       `json:"isVerified" gorm:"not null;default:false;index"`
	HasVoted         bool       `json:"hasVoted" gorm:"not null;default:false"`
	VotingPermission bool       `json:"votingPermission" gorm:"not null;default:false"`
	VotedTo          *string    `json:"votedTo" gorm:"type:varchar(64)"`
	VerifiedAt       *time.Time `json:"verifiedAt"`
	VotedAt          *time.Time `json:"votedAt"`
}
