package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dvote-dapp/dvote/internal/domain"
)

// VerifyInput identifies the voter entry a topic owner verifies.
type VerifyInput struct {
	VotingTopicID string
	WalletAddress string
	VoterID       string
}

// ApproveInput identifies the candidacy a topic owner approves.
type ApproveInput struct {
	Fullname      string
	Email         string
	Party         string
	VotingTopicID string
}

type TopicOwnerUsecase struct {
	accounts   AccountRepository
	voters     VoterRepository
	candidates CandidateRepository
	topics     TopicRepository
	results    ResultRepository
	gateway    ContractGateway
	options
}

func NewTopicOwnerUsecase(
	accounts AccountRepository,
	voters VoterRepository,
	candidates CandidateRepository,
	topics TopicRepository,
	results ResultRepository,
	gateway ContractGateway,
	opts ...Option,
) *TopicOwnerUsecase {
	return &TopicOwnerUsecase{
		accounts:   accounts,
		voters:     voters,
		candidates: candidates,
		topics:     topics,
		results:    results,
		gateway:    gateway,
		options:    buildOptions("topic-owner", opts),
	}
}

// NormalizeWallet returns the checksummed form of a hex address, or the
// trimmed input when it is not one.
func NormalizeWallet(address string) string {
	address = strings.TrimSpace(address)
	if common.IsHexAddress(address) {
		return common.HexToAddress(address).Hex()
	}
	return address
}

// authorize requires the caller to be a topic owner and, once the topic has
// been declared, the owner who declared it.
func (uc *TopicOwnerUsecase) authorize(ctx context.Context, callerID, votingTopicID string) error {
	caller, err := uc.accounts.Get(ctx, callerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.UnauthenticatedError{Reason: "Unknown account."}
		}
		return err
	}
	if !caller.IsVotingTopicOwner {
		return domain.ForbiddenError{Reason: "Only voting topic owners can perform this action."}
	}

	votingTopicID = strings.TrimSpace(votingTopicID)
	if votingTopicID == "" {
		return nil
	}
	topic, err := uc.topics.Get(ctx, votingTopicID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if topic.OwnerID != "" && topic.OwnerID != caller.ID {
		return domain.ForbiddenError{Reason: "Only the owner of this voting topic can perform this action."}
	}
	return nil
}

func (uc *TopicOwnerUsecase) ListUnverifiedVoters(ctx context.Context, callerID, votingTopicID string) ([]domain.VoterListing, error) {
	if err := uc.authorize(ctx, callerID, votingTopicID); err != nil {
		return nil, err
	}
	votingTopicID, err := requireTopic(votingTopicID)
	if err != nil {
		return nil, err
	}
	voters, err := uc.voters.List(ctx, votingTopicID, false)
	if err != nil {
		return nil, err
	}
	if len(voters) == 0 {
		return nil, domain.NotFoundError{Resource: "unverified voters"}
	}
	return voters, nil
}

func (uc *TopicOwnerUsecase) ListUnapprovedCandidates(ctx context.Context, callerID, votingTopicID string) ([]domain.CandidateListing, error) {
	if err := uc.authorize(ctx, callerID, votingTopicID); err != nil {
		return nil, err
	}
	votingTopicID, err := requireTopic(votingTopicID)
	if err != nil {
		return nil, err
	}
	candidates, err := uc.candidates.List(ctx, votingTopicID, false)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, domain.NotFoundError{Resource: "unapproved candidates"}
	}
	return candidates, nil
}

// VerifyVoter marks a registered entry as verified. Verifying twice succeeds
// without touching the entry and reports alreadyVerified.
func (uc *TopicOwnerUsecase) VerifyVoter(ctx context.Context, callerID string, input VerifyInput) (profile domain.VoterProfile, alreadyVerified bool, err error) {
	ctx, span := tracer.Start(ctx, "TopicOwner.Usecase.VerifyVoter")
	defer span.End()

	if err := uc.authorize(ctx, callerID, input.VotingTopicID); err != nil {
		return domain.VoterProfile{}, false, err
	}

	input.VotingTopicID = strings.TrimSpace(input.VotingTopicID)
	input.VoterID = strings.TrimSpace(input.VoterID)
	input.WalletAddress = NormalizeWallet(input.WalletAddress)
	if input.VotingTopicID == "" || input.VoterID == "" || input.WalletAddress == "" {
		return domain.VoterProfile{}, false, domain.ValidationError{Reason: "walletAddress, voterId and votingTopicId are required."}
	}

	account, err := uc.accounts.GetByWallet(ctx, input.WalletAddress)
	if err != nil {
		return domain.VoterProfile{}, false, err
	}

	profile, err = uc.voters.GetProfile(ctx, account.ID)
	if err != nil {
		return domain.VoterProfile{}, false, err
	}

	entry, ok := profile.Entry(input.VotingTopicID)
	if !ok || !entry.IsRegistered || entry.VoterID != input.VoterID {
		return domain.VoterProfile{}, false, domain.NotFoundError{Resource: "registered voter entry with this voterId and votingTopicId"}
	}
	if entry.IsVerified {
		return profile, true, nil
	}

	permission := false
	topic, err := uc.topics.Get(ctx, input.VotingTopicID)
	switch {
	case err == nil:
		permission = topic.VotingPermission
	case !errors.Is(err, domain.ErrNotFound):
		return domain.VoterProfile{}, false, err
	}

	if err := uc.voters.MarkVerified(ctx, profile.ID, input.VotingTopicID, uc.clock.Now(), permission); err != nil {
		span.RecordError(err)
		return domain.VoterProfile{}, false, errors.Wrap(err, "mark verified")
	}
	uc.invalidate(ctx, voterCountKey(input.VotingTopicID))

	profile, err = uc.voters.GetProfile(ctx, account.ID)
	if err != nil {
		return domain.VoterProfile{}, false, err
	}
	return profile, false, nil
}

// ApproveCandidate assigns a fresh unique candidate id to a pending candidacy.
func (uc *TopicOwnerUsecase) ApproveCandidate(ctx context.Context, callerID string, input ApproveInput) (string, error) {
	ctx, span := tracer.Start(ctx, "TopicOwner.Usecase.ApproveCandidate")
	defer span.End()

	if err := uc.authorize(ctx, callerID, input.VotingTopicID); err != nil {
		return "", err
	}

	input.Fullname = strings.TrimSpace(input.Fullname)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Party = strings.TrimSpace(input.Party)
	input.VotingTopicID = strings.TrimSpace(input.VotingTopicID)
	if input.Fullname == "" || input.Email == "" || input.Party == "" || input.VotingTopicID == "" {
		return "", domain.ValidationError{Reason: "fullname, email, party and votingTopicId are required."}
	}

	account, err := uc.accounts.GetByNameAndEmail(ctx, input.Fullname, input.Email)
	if err != nil {
		return "", err
	}

	profile, err := uc.candidates.GetProfile(ctx, account.ID)
	if err != nil {
		return "", err
	}
	candidacy, ok := profile.Candidacy(input.VotingTopicID)
	if !ok {
		return "", domain.NotFoundError{Resource: "candidacy for this topic"}
	}
	if candidacy.IsApproved {
		return "", domain.ConflictError{Reason: "Candidate is already approved."}
	}
	if strings.TrimSpace(candidacy.Party) != input.Party {
		return "", domain.ValidationError{Reason: "Party does not match the candidacy."}
	}

	for attempt := 0; attempt < maxCandidateIDAttempts; attempt++ {
		candidateID := uc.generator.Generate(attempt)

		exists, err := uc.candidates.CandidateIDExists(ctx, candidateID)
		if err != nil {
			return "", err
		}
		if exists {
			continue
		}

		err = uc.candidates.Approve(ctx, profile.ID, input.VotingTopicID, candidateID, uc.clock.Now())
		if errors.Is(err, domain.ErrConflict) {
			// either the id was taken concurrently or the candidacy was approved meanwhile
			approved, err := uc.approvedMeanwhile(ctx, account.ID, input.VotingTopicID)
			if err != nil {
				return "", err
			}
			if approved {
				return "", domain.ConflictError{Reason: "Candidate is already approved."}
			}
			continue
		}
		if err != nil {
			span.RecordError(err)
			return "", err
		}

		uc.invalidate(ctx, candidateCountKey(input.VotingTopicID))
		span.SetAttributes(attribute.String("candidateId", candidateID))
		return candidateID, nil
	}

	return "", domain.InternalError{Reason: "candidate id space exhausted"}
}

func (uc *TopicOwnerUsecase) approvedMeanwhile(ctx context.Context, accountID, votingTopicID string) (bool, error) {
	profile, err := uc.candidates.GetProfile(ctx, accountID)
	if err != nil {
		return false, err
	}
	candidacy, ok := profile.Candidacy(votingTopicID)
	return ok && candidacy.IsApproved, nil
}

// ToggleVotingPermission flips the topic's voting permission and applies it
// to every verified voter entry. It returns the new state.
func (uc *TopicOwnerUsecase) ToggleVotingPermission(ctx context.Context, callerID, votingTopicID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "TopicOwner.Usecase.ToggleVotingPermission")
	defer span.End()

	if err := uc.authorize(ctx, callerID, votingTopicID); err != nil {
		return false, err
	}
	votingTopicID, err := requireTopic(votingTopicID)
	if err != nil {
		return false, err
	}

	topic, err := uc.topics.Get(ctx, votingTopicID)
	if err != nil {
		return false, err
	}
	enabled := !topic.VotingPermission

	affected, err := uc.topics.SetVotingPermission(ctx, votingTopicID, enabled)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	uc.logger.InfoContext(ctx, "voting permission toggled",
		slog.String("votingTopicId", votingTopicID),
		slog.Bool("enabled", enabled),
		slog.Int64("entries", affected),
	)
	if uc.metrics != nil {
		uc.metrics.PermissionToggled(votingTopicID, enabled)
	}
	uc.publish(ctx, domain.Event{
		Type:             domain.EventTypePermission,
		VotingTopicID:    votingTopicID,
		VotingPermission: &enabled,
		Timestamp:        uc.clock.Now(),
	})

	return enabled, nil
}

// SyncTallies copies the contract's per-candidate counts onto stored candidacies.
// It is idempotent and returns how many candidacies matched.
func (uc *TopicOwnerUsecase) SyncTallies(ctx context.Context, callerID, votingTopicID string) (int, error) {
	ctx, span := tracer.Start(ctx, "TopicOwner.Usecase.SyncTallies")
	defer span.End()

	if err := uc.authorize(ctx, callerID, votingTopicID); err != nil {
		return 0, err
	}
	votingTopicID, err := requireTopic(votingTopicID)
	if err != nil {
		return 0, err
	}

	tallies, err := uc.fetchTallies(ctx, votingTopicID)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, tally := range tallies {
		ok, err := uc.candidates.SyncTally(ctx, votingTopicID, tally)
		if err != nil {
			span.RecordError(err)
			return updated, err
		}
		if ok {
			updated++
		}
	}
	return updated, nil
}

func (uc *TopicOwnerUsecase) fetchTallies(ctx context.Context, votingTopicID string) ([]domain.ChainCandidate, error) {
	if uc.gateway == nil {
		return nil, domain.UpstreamError{Op: "getAllCandidates", Err: errors.New("contract gateway not configured")}
	}
	tallies, err := uc.gateway.GetAllCandidates(ctx, votingTopicID)
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.UpstreamFailed("getAllCandidates")
		}
		return nil, domain.UpstreamError{Op: "getAllCandidates", Err: err}
	}
	return tallies, nil
}

// StorePublishedResult reads the winner from the contract and stores it along
// with the synced tallies, closing voting for the topic.
func (uc *TopicOwnerUsecase) StorePublishedResult(ctx context.Context, callerID, votingTopicID string) (domain.Result, error) {
	ctx, span := tracer.Start(ctx, "TopicOwner.Usecase.StorePublishedResult")
	defer span.End()

	if err := uc.authorize(ctx, callerID, votingTopicID); err != nil {
		return domain.Result{}, err
	}
	votingTopicID, err := requireTopic(votingTopicID)
	if err != nil {
		return domain.Result{}, err
	}
	start := uc.clock.Now()

	if uc.gateway == nil {
		return domain.Result{}, domain.UpstreamError{Op: "getWinner", Err: errors.New("contract gateway not configured")}
	}
	winner, err := uc.gateway.GetWinner(ctx, votingTopicID)
	if err != nil {
		span.RecordError(err)
		if uc.metrics != nil {
			uc.metrics.UpstreamFailed("getWinner")
		}
		return domain.Result{}, domain.UpstreamError{Op: "getWinner", Err: err}
	}
	if strings.TrimSpace(winner.ID) == "" || strings.TrimSpace(winner.Name) == "" {
		return domain.Result{}, domain.UpstreamError{Op: "getWinner", Err: errors.New("invalid winner data received from contract")}
	}

	tallies, err := uc.fetchTallies(ctx, votingTopicID)
	if err != nil {
		return domain.Result{}, err
	}

	result, err := uc.results.Publish(ctx, PublishInput{
		VotingTopicID: votingTopicID,
		Winner:        winner,
		Tallies:       tallies,
		PublishedAt:   uc.clock.Now(),
	})
	if err != nil {
		span.RecordError(err)
		return domain.Result{}, err
	}

	uc.logger.InfoContext(ctx, "result published",
		slog.String("votingTopicId", votingTopicID),
		slog.String("winnerId", winner.ID),
		slog.Int64("totalVotes", result.TotalVotes),
	)
	if uc.metrics != nil {
		uc.metrics.ResultPublished(votingTopicID, uc.clock.Now().Sub(start))
	}
	uc.publish(ctx, domain.Event{
		Type:          domain.EventTypeResult,
		VotingTopicID: votingTopicID,
		WinnerID:      winner.ID,
		WinnerName:    winner.Name,
		TotalVotes:    result.TotalVotes,
		Timestamp:     uc.clock.Now(),
	})

	return result, nil
}
