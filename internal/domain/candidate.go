package domain

import "time"

// CandidacyEntry is an account's candidacy in one voting topic.
type CandidacyEntry struct {
	VotingTopicID string     `json:"votingTopicId"`
	CandidateID   *string    `json:"candidateId,omitempty"`
	Name          string     `json:"name,omitempty"`
	Party         string     `json:"party"`
	Bio           string     `json:"bio"`
	VoteCount     int64      `json:"voteCount"`
	IsApproved    bool       `json:"isApproved"`
	ApprovedAt    *time.Time `json:"approvedAt,omitempty"`
}

type CandidateProfile struct {
	ID          string           `json:"_id"`
	AccountID   string           `json:"userId"`
	Candidacies []CandidacyEntry `json:"candidacies"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Candidacy returns the candidacy for votingTopicID, if any.
func (p CandidateProfile) Candidacy(votingTopicID string) (CandidacyEntry, bool) {
	for _, c := range p.Candidacies {
		if c.VotingTopicID == votingTopicID {
			return c, true
		}
	}
	return CandidacyEntry{}, false
}

// CandidateListing is a candidacy joined with its account's public fields.
type CandidateListing struct {
	ProfileID     string     `json:"_id"`
	CandidateID   string     `json:"candidateId,omitempty"`
	VotingTopicID string     `json:"votingTopicId"`
	Party         string     `json:"party"`
	Bio           string     `json:"bio"`
	VoteCount     int64      `json:"voteCount"`
	UserFullName  string     `json:"userFullName"`
	UserEmail     string     `json:"userEmail"`
	Avatar        string     `json:"avatar,omitempty"`
	ApprovedAt    *time.Time `json:"approvedAt,omitempty"`
}

// ChainCandidate is a candidate as reported by the voting contract.
type ChainCandidate struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	VoteCount int64  `json:"voteCount"`
}
