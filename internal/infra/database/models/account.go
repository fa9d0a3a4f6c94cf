package models

import "time"

type Account struct {
	ID                 string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Fullname           string    `json:"fullname" gorm:"type:varchar(255);not null;index:idx_account_name_email"`
	Email              string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex;index:idx_account_name_email"`
	WalletAddress      string    `json:"walletAddress" gorm:"type:varchar(42);not null;uniqueIndex"`
	PasswordHash       string    `json:"-" gorm:"type:varchar(100);not null"`
	RefreshToken       *string   `json:"-" gorm:"type:text"`
	Avatar             string    `json:"avatar" gorm:"type:text"`
	IsVotingTopicOwner bool      `json:"isVotingTopicOwner" gorm:"not null;default:false"`
	ProfileID          *string   `json:"profileId" gorm:"type:varchar(36)"`
	CDate              time.Time `json:"cdate" gorm:"autoCreateTime"`
	MDate              time.Time `json:"mdate" gorm:"autoUpdateTime"`
}
