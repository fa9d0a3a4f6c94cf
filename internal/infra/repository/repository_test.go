package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/dvote-dapp/dvote/internal/domain"
	"github.com/dvote-dapp/dvote/internal/infra/database"
	"github.com/dvote-dapp/dvote/internal/usecase"
)

const testDSNEnv = "DVOTE_TEST_POSTGRES_DSN"

type repositorySuite struct {
	suite.Suite
	db         *gorm.DB
	accounts   *AccountRepository
	voters     *VoterRepository
	candidates *CandidateRepository
	topics     *TopicRepository
	results    *ResultRepository
	histories  *HistoryRepository
	ballots    *BallotRepository
}

func TestRepositorySuite(t *testing.T) {
	if os.Getenv(testDSNEnv) == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	suite.Run(t, new(repositorySuite))
}

func (s *repositorySuite) SetupSuite() {
	db, err := database.NewDB("postgres", os.Getenv(testDSNEnv))
	s.Require().NoError(err)
	s.Require().NoError(database.Migrate(db))
	s.db = db
}

func (s *repositorySuite) SetupTest() {
	s.Require().NoError(s.db.Exec(`TRUNCATE accounts, voter_profiles, voter_topic_entries,
		candidate_profiles, candidacy_entries, topics, results, vote_histories, vote_history_entries`).Error)

	s.accounts = NewAccountRepository(s.db)
	s.voters = NewVoterRepository(s.db)
	s.candidates = NewCandidateRepository(s.db)
	s.topics = NewTopicRepository(s.db)
	s.results = NewResultRepository(s.db)
	s.histories = NewHistoryRepository(s.db)
	s.ballots = NewBallotRepository(s.db)
}

func (s *repositorySuite) createAccount(name, email, wallet string) domain.Account {
	a, err := s.accounts.Create(context.Background(), domain.Account{
		Fullname:      name,
		Email:         email,
		WalletAddress: wallet,
		PasswordHash:  "hash",
	})
	s.Require().NoError(err)
	return a
}

func (s *repositorySuite) TestAccountUniqueness() {
	ctx := context.Background()
	a := s.createAccount("Alice Smith", "alice@example.com", "0x1111111111111111111111111111111111111111")

	_, err := s.accounts.Create(ctx, domain.Account{
		Fullname: "Other", Email: "alice@example.com", WalletAddress: "0x2222222222222222222222222222222222222222", PasswordHash: "x",
	})
	s.Require().ErrorIs(err, domain.ErrConflict)

	got, err := s.accounts.GetByWallet(ctx, "0X1111111111111111111111111111111111111111")
	s.Require().NoError(err)
	s.Equal(a.ID, got.ID)

	_, err = s.accounts.Get(ctx, "missing")
	s.Require().ErrorIs(err, domain.ErrNotFound)
}

// seed declares T1 with alice as approved candidate 100 and bob as verified voter.
func (s *repositorySuite) seed() (owner, alice, bob domain.Account, bobProfile domain.VoterProfile) {
	ctx := context.Background()
	owner = s.createAccount("Olivia Owner", "olivia@example.com", "0x00000000000000000000000000000000000000aa")
	alice = s.createAccount("Alice Smith", "alice@example.com", "0x1111111111111111111111111111111111111111")
	bob = s.createAccount("Bob Jones", "bob@example.com", "0x2222222222222222222222222222222222222222")

	_, err := s.topics.Declare(ctx, domain.Topic{ID: "T1", Name: "Board", OwnerID: owner.ID, CreatedAt: time.Now()})
	s.Require().NoError(err)

	_, err = s.voters.Register(ctx, alice.ID, "T1", "V-A")
	s.Require().NoError(err)
	bobProfile, err = s.voters.Register(ctx, bob.ID, "T1", "V-B")
	s.Require().NoError(err)

	s.Require().NoError(s.candidates.Apply(ctx, alice.ID, domain.CandidacyEntry{VotingTopicID: "T1", Party: "Green"}))
	cp, err := s.candidates.GetProfile(ctx, alice.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.candidates.Approve(ctx, cp.ID, "T1", "100", time.Now()))

	s.Require().NoError(s.voters.MarkVerified(ctx, bobProfile.ID, "T1", time.Now(), false))
	_, err = s.topics.SetVotingPermission(ctx, "T1", true)
	s.Require().NoError(err)
	return owner, alice, bob, bobProfile
}

func (s *repositorySuite) TestDeclareElevatesOwner() {
	ctx := context.Background()
	owner, _, _, _ := s.seed()

	got, err := s.accounts.Get(ctx, owner.ID)
	s.Require().NoError(err)
	s.True(got.IsVotingTopicOwner)

	_, err = s.topics.Declare(ctx, domain.Topic{ID: "T1", Name: "Dup", OwnerID: owner.ID})
	s.Require().ErrorIs(err, domain.ErrConflict)
}

func (s *repositorySuite) TestApplyTwiceConflicts() {
	ctx := context.Background()
	_, alice, _, _ := s.seed()

	err := s.candidates.Apply(ctx, alice.ID, domain.CandidacyEntry{VotingTopicID: "T1", Party: "Blue"})
	s.Require().ErrorIs(err, domain.ErrConflict)
}

func (s *repositorySuite) TestCastVoteOnce() {
	ctx := context.Background()
	_, _, bob, bobProfile := s.seed()

	ballot := domain.Ballot{
		AccountID:     bob.ID,
		ProfileID:     bobProfile.ID,
		VotingTopicID: "T1",
		TopicName:     "Board",
		CandidateID:   "100",
		CandidateName: "Alice Smith",
		CastAt:        time.Now().UTC(),
	}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.ballots.Cast(ctx, ballot)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.Require().ErrorIs(err, domain.ErrForbidden)
	}
	s.Equal(1, succeeded)

	listing, err := s.candidates.FindApproved(ctx, "T1", "100")
	s.Require().NoError(err)
	s.Equal(int64(1), listing.VoteCount)

	history, err := s.histories.Get(ctx, bob.ID)
	s.Require().NoError(err)
	s.Len(history.Entries, 1)
	s.Equal(int64(1), history.Entries[0].VoteCountAtTime)
}

func (s *repositorySuite) TestCastVoteUnknownCandidateRollsBack() {
	ctx := context.Background()
	_, _, bob, bobProfile := s.seed()

	_, err := s.ballots.Cast(ctx, domain.Ballot{
		AccountID: bob.ID, ProfileID: bobProfile.ID, VotingTopicID: "T1", CandidateID: "999", CastAt: time.Now(),
	})
	s.Require().ErrorIs(err, domain.ErrNotFound)

	profile, err := s.voters.GetProfile(ctx, bob.ID)
	s.Require().NoError(err)
	entry, _ := profile.Entry("T1")
	s.False(entry.HasVoted)
}

func (s *repositorySuite) TestPublishRequiresResult() {
	ctx := context.Background()
	_, err := s.results.Publish(ctx, usecase.PublishInput{
		VotingTopicID: "T-none",
		Winner:        domain.ChainCandidate{ID: "1", Name: "x"},
		PublishedAt:   time.Now(),
	})
	s.Require().ErrorIs(err, domain.ErrNotFound)
}

func (s *repositorySuite) TestPublishClosesVoting() {
	ctx := context.Background()
	_, _, bob, _ := s.seed()

	result, err := s.results.Publish(ctx, usecase.PublishInput{
		VotingTopicID: "T1",
		Winner:        domain.ChainCandidate{ID: "100", Name: "Alice Smith", VoteCount: 3},
		Tallies: []domain.ChainCandidate{
			{ID: "100", Name: "Alice Smith", VoteCount: 3},
			{ID: "200", Name: "Carol White", VoteCount: 2},
		},
		PublishedAt:   time.Now(),
	})
	s.Require().NoError(err)
	s.True(result.Published())
	s.Equal(int64(3), result.TotalVotes)

	listing, err := s.candidates.FindApproved(ctx, "T1", "100")
	s.Require().NoError(err)
	s.Equal(int64(3), listing.VoteCount)

	profile, err := s.voters.GetProfile(ctx, bob.ID)
	s.Require().NoError(err)
	entry, _ := profile.Entry("T1")
	s.False(entry.VotingPermission)

	topic, err := s.topics.Get(ctx, "T1")
	s.Require().NoError(err)
	s.False(topic.VotingPermission)
}
