package models

import "time"

type CandidateProfile struct {
	ID          string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AccountID   string           `json:"accountId" gorm:"type:varchar(36);not null;uniqueIndex"`
	Candidacies []CandidacyEntry `json:"candidacies" gorm:"foreignKey:ProfileID;references:ID;constraint:OnDelete:RESTRICT;"`
	CDate       time.Time        `json:"cdate" gorm:"autoCreateTime"`
	MDate       time.Time        `json:"mdate" gorm:"autoUpdateTime"`
}

// CandidacyEntry holds at most one row per (profile, topic). CandidateID is
// null until approval and globally unique afterwards.
type CandidacyEntry struct {
	ProfileID     string     `json:"profileId" gorm:"primaryKey;type:varchar(36)"`
	VotingTopicID string     `json:"votingTopicId" gorm:"primaryKey;type:varchar(191);index"`
	CandidateID   *string    `json:"candidateId" gorm:"type:varchar(64);uniqueIndex"`
	Name          string     `json:"name" gorm:"type:varchar(255)"`
	Party         string     `json:"party" gorm:"type:varchar(255);not null"`
	Bio           string     `json:"bio" gorm:"type:text"`
	VoteCount     int64      `json:"voteCount" gorm:"not null;default:0"`
	IsApproved    bool       `json:"isApproved" gorm:"not null;default:false;index"`
	ApprovedAt    *time.Time `json:"approvedAt"`
}
