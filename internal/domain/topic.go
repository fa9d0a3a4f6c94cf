package domain

import "time"

// Topic is a declared voting topic.
type Topic struct {
	ID               string    `json:"votingTopicId"`
	Name             string    `json:"votingTopicName"`
	OwnerID          string    `json:"ownerId"`
	VotingPermission bool      `json:"votingPermission"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Result is the published outcome of a topic. Winner fields stay nil until publication.
type Result struct {
	VotingTopicID   string     `json:"votingTopicId"`
	VotingTopicName string     `json:"votingTopicName"`
	WinnerID        *string    `json:"winnerId,omitempty"`
	WinnerName      *string    `json:"winnerName,omitempty"`
	TotalVotes      int64      `json:"totalVotes"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
}

// Published reports whether a winner has been stored.
func (r Result) Published() bool {
	return r.PublishedAt != nil
}
