package domain

import "time"

// Event is published to subscribers of a topic channel.
type Event struct {
	Type             string    `json:"type"`
	VotingTopicID    string    `json:"votingTopicId"`
	CandidateID      string    `json:"candidateId,omitempty"`
	VoteCount        int64     `json:"voteCount,omitempty"`
	VotingPermission *bool     `json:"votingPermission,omitempty"`
	WinnerID         string    `json:"winnerId,omitempty"`
	WinnerName       string    `json:"winnerName,omitempty"`
	TotalVotes       int64     `json:"totalVotes,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}
