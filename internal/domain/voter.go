package domain

import "time"

// VoterTopicEntry is an account's participation state in one voting topic.
type VoterTopicEntry struct {
	VotingTopicID    string     `json:"votingTopicId"`
	VoterID          string     `json:"voterId"`
	IsRegistered     bool       `json:"isRegistered"`
	IsVerified       bool       `json:"isVerified"`
	HasVoted         bool       `json:"hasVoted"`
	VotingPermission bool       `json:"votingPermission"`
	VotedTo          *string    `json:"votedTo,omitempty"`
	VerifiedAt       *time.Time `json:"verifiedAt,omitempty"`
	VotedAt          *time.Time `json:"votedAt,omitempty"`
}

// VoterProfile holds every topic entry of one account.
type VoterProfile struct {
	ID           string            `json:"_id"`
	AccountID    string            `json:"userId"`
	VotingTopics []VoterTopicEntry `json:"votingTopic"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// Entry returns the entry for votingTopicID, if any.
func (p VoterProfile) Entry(votingTopicID string) (VoterTopicEntry, bool) {
	for _, e := range p.VotingTopics {
		if e.VotingTopicID == votingTopicID {
			return e, true
		}
	}
	return VoterTopicEntry{}, false
}

// VoterListing is a voter entry joined with its account's public fields.
type VoterListing struct {
	ProfileID     string `json:"_id"`
	VoterID       string `json:"voterId"`
	VotingTopicID string `json:"votingTopicId"`
	UserFullName  string `json:"userFullName"`
	UserEmail     string `json:"userEmail"`
	WalletAddress string `json:"walletAddress"`
	Avatar        string `json:"avatar,omitempty"`
}
