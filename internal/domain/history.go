package domain

import "time"

type HistoryEntry struct {
	VotingTopicID   string    `json:"votingTopicId"`
	TopicName       string    `json:"topicName"`
	VotedTo         string    `json:"votedTo"`
	CandidateName   string    `json:"candidateName"`
	VoteCountAtTime int64     `json:"voteCountAtTime"`
	VotedAt         time.Time `json:"votedAt"`
}

// History is the append-only ledger of an account's votes.
type History struct {
	AccountID string         `json:"userId"`
	Entries   []HistoryEntry `json:"history"`
}

// Ballot is a single vote about to be recorded.
type Ballot struct {
	AccountID     string
	ProfileID     string
	VotingTopicID string
	TopicName     string
	CandidateID   string
	CandidateName string
	CastAt        time.Time
}
