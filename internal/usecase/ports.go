package usecase

import (
	"context"
	"time"

	"github.com/dvote-dapp/dvote/internal/domain"
)

// AccountRepository defines persistence/lookup for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) (domain.Account, error)
	Get(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByWallet(ctx context.Context, wallet string) (domain.Account, error)
	GetByNameAndEmail(ctx context.Context, fullname, email string) (domain.Account, error)
	SetProfile(ctx context.Context, id, profileID string) error
	SetRefreshToken(ctx context.Context, id string, token *string) error
}

// VoterRepository defines storage operations for voter state.
type VoterRepository interface {
	GetProfile(ctx context.Context, accountID string) (domain.VoterProfile, error)
	// Register creates the profile when missing and upserts the topic entry.
	Register(ctx context.Context, accountID, votingTopicID, voterID string) (domain.VoterProfile, error)
	MarkVerified(ctx context.Context, profileID, votingTopicID string, at time.Time, permission bool) error
	CountVerified(ctx context.Context, votingTopicID string) (int64, error)
	List(ctx context.Context, votingTopicID string, verified bool) ([]domain.VoterListing, error)
}

// CandidateRepository defines storage operations for candidacies.
type CandidateRepository interface {
	GetProfile(ctx context.Context, accountID string) (domain.CandidateProfile, error)
	// Apply fails with a ConflictError when the account already applied for the topic.
	Apply(ctx context.Context, accountID string, entry domain.CandidacyEntry) error
	FindApproved(ctx context.Context, votingTopicID, candidateID string) (domain.CandidateListing, error)
	CandidateIDExists(ctx context.Context, candidateID string) (bool, error)
	// Approve fails with a ConflictError when the candidate id is already taken.
	Approve(ctx context.Context, profileID, votingTopicID, candidateID string, at time.Time) error
	CountApproved(ctx context.Context, votingTopicID string) (int64, error)
	List(ctx context.Context, votingTopicID string, approved bool) ([]domain.CandidateListing, error)
	SyncTally(ctx context.Context, votingTopicID string, candidate domain.ChainCandidate) (bool, error)
}

// TopicRepository defines storage operations for voting topics.
type TopicRepository interface {
	// Declare stores the topic with an empty result and elevates the owner, atomically.
	Declare(ctx context.Context, topic domain.Topic) (domain.Result, error)
	Get(ctx context.Context, votingTopicID string) (domain.Topic, error)
	SetVotingPermission(ctx context.Context, votingTopicID string, permission bool) (int64, error)
}

// PublishInput is everything written when a result is published.
type PublishInput struct {
	VotingTopicID string
	Winner        domain.ChainCandidate
	Tallies       []domain.ChainCandidate
	PublishedAt   time.Time
}

// ResultRepository defines storage operations for results.
type ResultRepository interface {
	Get(ctx context.Context, votingTopicID string) (domain.Result, error)
	// Publish updates an existing result, syncs tallies and closes voting in one transaction.
	Publish(ctx context.Context, input PublishInput) (domain.Result, error)
}

// HistoryRepository defines storage operations for vote histories.
type HistoryRepository interface {
	Ensure(ctx context.Context, accountID string) error
	Get(ctx context.Context, accountID string) (domain.History, error)
}

// BallotBox records a vote and returns the appended history entry.
type BallotBox interface {
	Cast(ctx context.Context, ballot domain.Ballot) (domain.HistoryEntry, error)
}

// ContractGateway encapsulates reads from the voting contract.
type ContractGateway interface {
	GetWinner(ctx context.Context, votingTopicID string) (domain.ChainCandidate, error)
	GetAllCandidates(ctx context.Context, votingTopicID string) ([]domain.ChainCandidate, error)
	GetAllCandidatesCached(ctx context.Context, votingTopicID string) ([]domain.ChainCandidate, error)
}

// PasswordHasher hashes and compares account passwords.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePassword(hash, password string) error
}

// TokenIssuer issues login tokens.
type TokenIssuer interface {
	IssueTokens(account domain.Account) (domain.TokenPair, error)
}

// SignalPublisher fans out topic events. Failures never fail the calling operation.
type SignalPublisher interface {
	Publish(ctx context.Context, channel string, event domain.Event) error
}

// CountCache memoises per-topic counts.
type CountCache interface {
	Get(ctx context.Context, key string) (int64, bool)
	Set(ctx context.Context, key string, n int64)
	Invalidate(ctx context.Context, key string)
}

// CandidateIDGenerator proposes a candidate id for the given attempt.
type CandidateIDGenerator interface {
	Generate(attempt int) string
}

// Metrics records domain counters.
type Metrics interface {
	VoteCast(votingTopicID string)
	PermissionToggled(votingTopicID string, enabled bool)
	ResultPublished(votingTopicID string, elapsed time.Duration)
	UpstreamFailed(op string)
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}
