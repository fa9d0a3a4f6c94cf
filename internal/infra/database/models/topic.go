package models

import "time"

type Topic struct {
	ID               string    `json:"id" gorm:"primaryKey;type:varchar(191)"`
	Name             string    `json:"name" gorm:"type:varchar(255);not null"`
	OwnerID          string    `json:"ownerId" gorm:"type:varchar(36);not null;index"`
	VotingPermission bool      `json:"votingPermission" gorm:"not null;default:false"`
	CDate            time.Time `json:"cdate" gorm:"autoCreateTime"`
}

type Result struct {
	VotingTopicID   string     `json:"votingTopicId" gorm:"primaryKey;type:varchar(191)"`
	VotingTopicName string     `json:"votingTopicName" gorm:"type:varchar(255);not null"`
	WinnerID        *string    `json:"winnerId" gorm:"type:varchar(64)"`
	WinnerName      *string    `json:"winnerName" gorm:"type:varchar(255)"`
	TotalVotes      int64      `json:"totalVotes" gorm:"not null;default:0"`
	PublishedAt     *time.Time `json:"publishedAt"`
	CDate           time.Time  `json:"cdate" gorm:"autoCreateTime"`
	MDate           time.Time  `json:"mdate" gorm:"autoUpdateTime"`
}
