package usecase

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dvote-dapp/dvote/internal/domain"
)

var tracer = otel.Tracer("usecase")

// ApplyInput is the validated input for a candidacy application.
type ApplyInput struct {
	VotingTopicID string
	Party         string
	Bio           string
}

// CastInput is the validated input for a vote.
type CastInput struct {
	VotingTopicID string
	CandidateID   string
}

type VoterUsecase struct {
	accounts   AccountRepository
	voters     VoterRepository
	candidates CandidateRepository
	results    ResultRepository
	histories  HistoryRepository
	ballots    BallotBox
	gateway    ContractGateway
	options
}

func NewVoterUsecase(
	accounts AccountRepository,
	voters VoterRepository,
	candidates CandidateRepository,
	results ResultRepository,
	histories HistoryRepository,
	ballots BallotBox,
	gateway ContractGateway,
	opts ...Option,
) *VoterUsecase {
	return &VoterUsecase{
		accounts:   accounts,
		voters:     voters,
		candidates: candidates,
		results:    results,
		histories:  histories,
		ballots:    ballots,
		gateway:    gateway,
		options:    buildOptions("voter", opts),
	}
}

func requireTopic(votingTopicID string) (string, error) {
	votingTopicID = strings.TrimSpace(votingTopicID)
	if votingTopicID == "" {
		return "", domain.ValidationError{Reason: "votingTopicId is required."}
	}
	return votingTopicID, nil
}

// UpdateProfile registers the account as a voter for a topic.
func (uc *VoterUsecase) UpdateProfile(ctx context.Context, accountID, votingTopicID, voterID string) (domain.VoterProfile, error) {
	ctx, span := tracer.Start(ctx, "Voter.Usecase.UpdateProfile")
	defer span.End()

	votingTopicID = strings.TrimSpace(votingTopicID)
	voterID = strings.TrimSpace(voterID)
	if votingTopicID == "" || voterID == "" {
		return domain.VoterProfile{}, domain.ValidationError{Reason: "Invalid input: 'voterId' and 'votingTopicId' are required."}
	}

	account, err := uc.accounts.Get(ctx, accountID)
	if err != nil {
		return domain.VoterProfile{}, err
	}

	profile, err := uc.voters.Register(ctx, account.ID, votingTopicID, voterID)
	if err != nil {
		span.RecordError(err)
		return domain.VoterProfile{}, errors.Wrap(err, "register voter")
	}

	if err := uc.histories.Ensure(ctx, account.ID); err != nil {
		return domain.VoterProfile{}, errors.Wrap(err, "ensure history")
	}

	if account.ProfileID == nil || *account.ProfileID != profile.ID {
		if err := uc.accounts.SetProfile(ctx, account.ID, profile.ID); err != nil {
			return domain.VoterProfile{}, errors.Wrap(err, "link profile")
		}
	}

	return profile, nil
}

// ApplyCandidate files an unapproved candidacy for a topic the account is registered in.
func (uc *VoterUsecase) ApplyCandidate(ctx context.Context, accountID string, input ApplyInput) (domain.CandidacyEntry, error) {
	ctx, span := tracer.Start(ctx, "Voter.Usecase.ApplyCandidate")
	defer span.End()

	input.VotingTopicID = strings.TrimSpace(input.VotingTopicID)
	input.Party = strings.TrimSpace(input.Party)
	input.Bio = strings.TrimSpace(input.Bio)
	if input.VotingTopicID == "" || input.Party == "" {
		return domain.CandidacyEntry{}, domain.ValidationError{Reason: "Party and votingTopicId are required."}
	}

	profile, err := uc.voters.GetProfile(ctx, accountID)
	if err != nil {
		return domain.CandidacyEntry{}, err
	}
	if _, ok := profile.Entry(input.VotingTopicID); !ok {
		return domain.CandidacyEntry{}, domain.NotFoundError{Resource: "voter registration for this topic"}
	}

	existing, err := uc.candidates.GetProfile(ctx, accountID)
	switch {
	case err == nil:
		if _, ok := existing.Candidacy(input.VotingTopicID); ok {
			return domain.CandidacyEntry{}, domain.ConflictError{Reason: "You have already applied as a candidate for this topic."}
		}
	case !errors.Is(err, domain.ErrNotFound):
		return domain.CandidacyEntry{}, err
	}

	entry := domain.CandidacyEntry{
		VotingTopicID: input.VotingTopicID,
		Party:         input.Party,
		Bio:           input.Bio,
	}
	if err := uc.candidates.Apply(ctx, accountID, entry); err != nil {
		span.RecordError(err)
		return domain.CandidacyEntry{}, err
	}

	return entry, nil
}

func (uc *VoterUsecase) CountVoters(ctx context.Context, votingTopicID string) (int64, error) {
	votingTopicID, err := requireTopic(votingTopicID)
	if err != nil {
		return 0, err
	}
	return uc.cachedCount(ctx, voterCountKey(votingTopicID), func() (int64, error) {
		return uc.voters.CountVerified(ctx, votingTopicID)
	})
}

func (uc *VoterUsecase) CountCandidates(ctx context.Context, votingTopicID string) (int64, error) {
	votingTopicID, err := requireTopic(votingTopicID)
	if err != nil {
		return 0, err
	}
	return uc.cachedCount(ctx, candidateCountKey(votingTopicID), func() (int64, error) {
		return uc.candidates.CountApproved(ctx, votingTopicID)
	})
}

func (uc *VoterUsecase) ListVoters(ctx context.Context, votingTopicID string) ([]domain.VoterListing, error) {
	votingTopicID, err := requireTopic(votingTopicID)
	if err != nil {
		return nil, err
	}
	voters, err := uc.voters.List(ctx, votingTopicID, true)
	if err != nil {
		return nil, err
	}
	if len(voters) == 0 {
		return nil, domain.NotFoundError{Resource: "verified voters"}
	}
	return voters, nil
}

func (uc *VoterUsecase) ListCandidates(ctx context.Context, votingTopicID string) ([]domain.CandidateListing, error) {
	votingTopicID, err := requireTopic(votingTopicID)
	if err != nil {
		return nil, err
	}
	candidates, err := uc.candidates.List(ctx, votingTopicID, true)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, domain.NotFoundError{Resource: "approved candidates"}
	}
	return candidates, nil
}

// CastVote records exactly one vote of the account in a topic.
func (uc *VoterUsecase) CastVote(ctx context.Context, accountID string, input CastInput) (domain.HistoryEntry, error) {
	ctx, span := tracer.Start(ctx, "Voter.Usecase.CastVote")
	defer span.End()

	input.VotingTopicID = strings.TrimSpace(input.VotingTopicID)
	input.CandidateID = strings.TrimSpace(input.CandidateID)
	if input.VotingTopicID == "" || input.CandidateID == "" {
		return domain.HistoryEntry{}, domain.ValidationError{Reason: "votingTopicId and candidateId are required."}
	}
	span.SetAttributes(attribute.String("votingTopicId", input.VotingTopicID))

	profile, err := uc.voters.GetProfile(ctx, accountID)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	entry, ok := profile.Entry(input.VotingTopicID)
	if !ok {
		return domain.HistoryEntry{}, domain.NotFoundError{Resource: "voter registration for this topic"}
	}
	if !entry.IsVerified || !entry.VotingPermission {
		return domain.HistoryEntry{}, domain.ForbiddenError{Reason: "You are not allowed to vote in this topic."}
	}
	if entry.HasVoted {
		return domain.HistoryEntry{}, domain.ForbiddenError{Reason: "You have already cast your vote for this topic."}
	}

	candidate, err := uc.candidates.FindApproved(ctx, input.VotingTopicID, input.CandidateID)
	if err != nil {
		return domain.HistoryEntry{}, err
	}

	var topicName string
	result, err := uc.results.Get(ctx, input.VotingTopicID)
	switch {
	case err == nil:
		topicName = result.VotingTopicName
	case !errors.Is(err, domain.ErrNotFound):
		return domain.HistoryEntry{}, err
	}

	recorded, err := uc.ballots.Cast(ctx, domain.Ballot{
		AccountID:     accountID,
		ProfileID:     profile.ID,
		VotingTopicID: input.VotingTopicID,
		TopicName:     topicName,
		CandidateID:   input.CandidateID,
		CandidateName: candidate.UserFullName,
		CastAt:        uc.clock.Now(),
	})
	if err != nil {
		span.RecordError(err)
		return domain.HistoryEntry{}, err
	}

	if uc.metrics != nil {
		uc.metrics.VoteCast(input.VotingTopicID)
	}
	uc.publish(ctx, domain.Event{
		Type:          domain.EventTypeVote,
		VotingTopicID: input.VotingTopicID,
		CandidateID:   input.CandidateID,
		VoteCount:     recorded.VoteCountAtTime,
		Timestamp:     recorded.VotedAt,
	})

	return recorded, nil
}

// GetResults lists approved candidates by descending votes. The caller must
// have voted, and voting must still be open or the result already published.
func (uc *VoterUsecase) GetResults(ctx context.Context, accountID, votingTopicID string) ([]domain.CandidateListing, error) {
	ctx, span := tracer.Start(ctx, "Voter.Usecase.GetResults")
	defer span.End()

	votingTopicID, err := requireTopic(votingTopicID)
	if err != nil {
		return nil, err
	}

	profile, err := uc.voters.GetProfile(ctx, accountID)
	if err != nil {
		return nil, err
	}
	entry, ok := profile.Entry(votingTopicID)
	if !ok {
		return nil, domain.ForbiddenError{Reason: "You are not registered in this voting topic."}
	}
	if !entry.HasVoted {
		return nil, domain.ForbiddenError{Reason: "You have to vote before viewing the results."}
	}
	if !entry.VotingPermission {
		result, err := uc.results.Get(ctx, votingTopicID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if err != nil || !result.Published() {
			return nil, domain.ForbiddenError{Reason: "Voting is closed and the result is not published yet."}
		}
	}

	candidates, err := uc.candidates.List(ctx, votingTopicID, true)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, domain.NotFoundError{Resource: "candidates for this topic"}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].VoteCount > candidates[j].VoteCount
	})
	return candidates, nil
}

func (uc *VoterUsecase) GetHistory(ctx context.Context, accountID string) (domain.History, error) {
	history, err := uc.histories.Get(ctx, accountID)
	if err != nil {
		return domain.History{}, err
	}
	if len(history.Entries) == 0 {
		return domain.History{}, domain.NotFoundError{Resource: "voting history"}
	}
	return history, nil
}

// ChainTally returns the contract's live tally, served from a short-lived cache.
func (uc *VoterUsecase) ChainTally(ctx context.Context, votingTopicID string) ([]domain.ChainCandidate, error) {
	ctx, span := tracer.Start(ctx, "Voter.Usecase.ChainTally")
	defer span.End()

	votingTopicID, err := requireTopic(votingTopicID)
	if err != nil {
		return nil, err
	}
	if uc.gateway == nil {
		return nil, domain.UpstreamError{Op: "getAllCandidates", Err: errors.New("contract gateway not configured")}
	}

	candidates, err := uc.gateway.GetAllCandidatesCached(ctx, votingTopicID)
	if err != nil {
		span.RecordError(err)
		if uc.metrics != nil {
			uc.metrics.UpstreamFailed("getAllCandidates")
		}
		return nil, domain.UpstreamError{Op: "getAllCandidates", Err: err}
	}
	return candidates, nil
}
