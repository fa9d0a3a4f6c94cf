package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/dvote-dapp/dvote/internal/domain"
)

// memStore implements every repository port in memory.
type memStore struct {
	mu          sync.Mutex
	seq         int
	accounts    map[string]*domain.Account
	voters      map[string]*domain.VoterProfile
	candidates  map[string]*domain.CandidateProfile
	topics      map[string]*domain.Topic
	results     map[string]*domain.Result
	histories   map[string]*domain.History
	approveErrs []error
}

func newMemStore() *memStore {
	return &memStore{
		accounts:   map[string]*domain.Account{},
		voters:     map[string]*domain.VoterProfile{},
		candidates: map[string]*domain.CandidateProfile{},
		topics:     map[string]*domain.Topic{},
		results:    map[string]*domain.Result{},
		histories:  map[string]*domain.History{},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) addAccount(fullname, email, wallet string, owner bool) domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &domain.Account{
		ID:                 s.nextID("acct"),
		Fullname:           fullname,
		Email:              email,
		WalletAddress:      wallet,
		IsVotingTopicOwner: owner,
	}
	s.accounts[a.ID] = a
	return *a
}

// accounts

type memAccounts struct{ *memStore }

func (r memAccounts) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == account.Email || strings.EqualFold(a.WalletAddress, account.WalletAddress) {
			return domain.Account{}, domain.ConflictError{Reason: "account exists"}
		}
	}
	account.ID = r.nextID("acct")
	r.accounts[account.ID] = &account
	return account, nil
}

func (r memAccounts) find(match func(a *domain.Account) bool) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if match(a) {
			return *a, nil
		}
	}
	return domain.Account{}, domain.NotFoundError{Resource: "account"}
}

func (r memAccounts) Get(ctx context.Context, id string) (domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.ID == id })
}

func (r memAccounts) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.Email == email })
}

func (r memAccounts) GetByWallet(ctx context.Context, wallet string) (domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return strings.EqualFold(a.WalletAddress, wallet) })
}

func (r memAccounts) GetByNameAndEmail(ctx context.Context, fullname, email string) (domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.Fullname == fullname && a.Email == email })
}

func (r memAccounts) SetProfile(ctx context.Context, id, profileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return domain.NotFoundError{Resource: "account"}
	}
	a.ProfileID = &profileID
	return nil
}

func (r memAccounts) SetRefreshToken(ctx context.Context, id string, token *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return domain.NotFoundError{Resource: "account"}
	}
	a.RefreshToken = token
	return nil
}

// voters

type memVoters struct{ *memStore }

func (r memVoters) GetProfile(ctx context.Context, accountID string) (domain.VoterProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.voters[accountID]
	if !ok {
		return domain.VoterProfile{}, domain.NotFoundError{Resource: "voter profile"}
	}
	out := *p
	out.VotingTopics = append([]domain.VoterTopicEntry(nil), p.VotingTopics...)
	return out, nil
}

func (r memVoters) Register(ctx context.Context, accountID, votingTopicID, voterID string) (domain.VoterProfile, error) {
	r.mu.Lock()
	p, ok := r.voters[accountID]
	if !ok {
		p = &domain.VoterProfile{ID: r.nextID("voter"), AccountID: accountID}
		r.voters[accountID] = p
	}
	found := false
	for i := range p.VotingTopics {
		if p.VotingTopics[i].VotingTopicID == votingTopicID {
			p.VotingTopics[i].VoterID = voterID
			p.VotingTopics[i].IsRegistered = true
			found = true
		}
	}
	if !found {
		p.VotingTopics = append(p.VotingTopics, domain.VoterTopicEntry{
			VotingTopicID: votingTopicID,
			VoterID:       voterID,
			IsRegistered:  true,
		})
	}
	r.mu.Unlock()
	return r.GetProfile(ctx, accountID)
}

func (r memVoters) MarkVerified(ctx context.Context, profileID, votingTopicID string, at time.Time, permission bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.voters {
		if p.ID != profileID {
			continue
		}
		for i := range p.VotingTopics {
			e := &p.VotingTopics[i]
			if e.VotingTopicID == votingTopicID && !e.IsVerified {
				e.IsVerified = true
				e.VerifiedAt = &at
				e.VotingPermission = permission
			}
		}
	}
	return nil
}

func (r memVoters) CountVerified(ctx context.Context, votingTopicID string) (int64, error) {
	list, _ := r.List(ctx, votingTopicID, true)
	return int64(len(list)), nil
}

func (r memVoters) List(ctx context.Context, votingTopicID string, verified bool) ([]domain.VoterListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.VoterListing
	for accountID, p := range r.voters {
		for _, e := range p.VotingTopics {
			if e.VotingTopicID != votingTopicID || e.IsVerified != verified {
				continue
			}
			a := r.accounts[accountID]
			out = append(out, domain.VoterListing{
				ProfileID:     p.ID,
				VoterID:       e.VoterID,
				VotingTopicID: e.VotingTopicID,
				UserFullName:  a.Fullname,
				UserEmail:     a.Email,
				WalletAddress: a.WalletAddress,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserFullName < out[j].UserFullName })
	return out, nil
}

// candidates

type memCandidates struct{ *memStore }

func (r memCandidates) GetProfile(ctx context.Context, accountID string) (domain.CandidateProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.candidates[accountID]
	if !ok {
		return domain.CandidateProfile{}, domain.NotFoundError{Resource: "candidate profile"}
	}
	out := *p
	out.Candidacies = append([]domain.CandidacyEntry(nil), p.Candidacies...)
	return out, nil
}

func (r memCandidates) Apply(ctx context.Context, accountID string, entry domain.CandidacyEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.candidates[accountID]
	if !ok {
		p = &domain.CandidateProfile{ID: r.nextID("cand"), AccountID: accountID}
		r.candidates[accountID] = p
	}
	if _, dup := p.Candidacy(entry.VotingTopicID); dup {
		return domain.ConflictError{Reason: "duplicate candidacy"}
	}
	p.Candidacies = append(p.Candidacies, entry)
	return nil
}

func (r memCandidates) listing(accountID string, p *domain.CandidateProfile, c domain.CandidacyEntry) domain.CandidateListing {
	a := r.accounts[accountID]
	l := domain.CandidateListing{
		ProfileID:     p.ID,
		VotingTopicID: c.VotingTopicID,
		Party:         c.Party,
		Bio:           c.Bio,
		VoteCount:     c.VoteCount,
		UserFullName:  a.Fullname,
		UserEmail:     a.Email,
		ApprovedAt:    c.ApprovedAt,
	}
	if c.CandidateID != nil {
		l.CandidateID = *c.CandidateID
	}
	return l
}

func (r memCandidates) FindApproved(ctx context.Context, votingTopicID, candidateID string) (domain.CandidateListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for accountID, p := range r.candidates {
		for _, c := range p.Candidacies {
			if c.VotingTopicID == votingTopicID && c.IsApproved && c.CandidateID != nil && *c.CandidateID == candidateID {
				return r.listing(accountID, p, c), nil
			}
		}
	}
	return domain.CandidateListing{}, domain.NotFoundError{Resource: "approved candidate"}
}

func (r memCandidates) CandidateIDExists(ctx context.Context, candidateID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.candidates {
		for _, c := range p.Candidacies {
			if c.CandidateID != nil && *c.CandidateID == candidateID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r memCandidates) Approve(ctx context.Context, profileID, votingTopicID, candidateID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.approveErrs) > 0 {
		err := r.approveErrs[0]
		r.approveErrs = r.approveErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, p := range r.candidates {
		if p.ID != profileID {
			continue
		}
		for i := range p.Candidacies {
			c := &p.Candidacies[i]
			if c.VotingTopicID == votingTopicID && !c.IsApproved {
				id := candidateID
				c.CandidateID = &id
				c.IsApproved = true
				c.ApprovedAt = &at
				return nil
			}
		}
	}
	return domain.ConflictError{Reason: "Candidate is already approved."}
}

func (r memCandidates) CountApproved(ctx context.Context, votingTopicID string) (int64, error) {
	list, _ := r.List(ctx, votingTopicID, true)
	return int64(len(list)), nil
}

func (r memCandidates) List(ctx context.Context, votingTopicID string, approved bool) ([]domain.CandidateListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CandidateListing
	for accountID, p := range r.candidates {
		for _, c := range p.Candidacies {
			if c.VotingTopicID == votingTopicID && c.IsApproved == approved {
				out = append(out, r.listing(accountID, p, c))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserFullName < out[j].UserFullName })
	return out, nil
}

func (r memCandidates) SyncTally(ctx context.Context, votingTopicID string, candidate domain.ChainCandidate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syncTallyLocked(votingTopicID, candidate), nil
}

func (s *memStore) syncTallyLocked(votingTopicID string, candidate domain.ChainCandidate) bool {
	for _, p := range s.candidates {
		for i := range p.Candidacies {
			c := &p.Candidacies[i]
			if c.VotingTopicID == votingTopicID && c.CandidateID != nil && *c.CandidateID == candidate.ID {
				c.VoteCount = candidate.VoteCount
				c.Name = candidate.Name
				return true
			}
		}
	}
	return false
}

func (s *memStore) setPermissionLocked(votingTopicID string, permission bool) int64 {
	if t, ok := s.topics[votingTopicID]; ok {
		t.VotingPermission = permission
	}
	var n int64
	for _, p := range s.voters {
		for i := range p.VotingTopics {
			e := &p.VotingTopics[i]
			if e.VotingTopicID == votingTopicID && e.IsVerified {
				e.VotingPermission = permission
				n++
			}
		}
	}
	return n
}

// topics

type memTopics struct{ *memStore }

func (r memTopics) Declare(ctx context.Context, topic domain.Topic) (domain.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.results[topic.ID]; ok {
		return domain.Result{}, domain.ConflictError{Reason: "Voting with this ID already exists."}
	}
	r.topics[topic.ID] = &topic
	result := &domain.Result{VotingTopicID: topic.ID, VotingTopicName: topic.Name}
	r.results[topic.ID] = result
	if a, ok := r.accounts[topic.OwnerID]; ok {
		a.IsVotingTopicOwner = true
	}
	return *result, nil
}

func (r memTopics) Get(ctx context.Context, votingTopicID string) (domain.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topics[votingTopicID]
	if !ok {
		return domain.Topic{}, domain.NotFoundError{Resource: "voting topic"}
	}
	return *t, nil
}

func (r memTopics) SetVotingPermission(ctx context.Context, votingTopicID string, permission bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.topics[votingTopicID]; !ok {
		return 0, domain.NotFoundError{Resource: "voting topic"}
	}
	return r.setPermissionLocked(votingTopicID, permission), nil
}

// results

type memResults struct{ *memStore }

func (r memResults) Get(ctx context.Context, votingTopicID string) (domain.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[votingTopicID]
	if !ok {
		return domain.Result{}, domain.NotFoundError{Resource: "result"}
	}
	return *res, nil
}

func (r memResults) Publish(ctx context.Context, input PublishInput) (domain.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[input.VotingTopicID]
	if !ok {
		return domain.Result{}, domain.NotFoundError{Resource: "result"}
	}
	id, name, at := input.Winner.ID, input.Winner.Name, input.PublishedAt
	res.WinnerID, res.WinnerName, res.PublishedAt = &id, &name, &at
	res.TotalVotes = input.Winner.VoteCount
	for _, t := range input.Tallies {
		r.syncTallyLocked(input.VotingTopicID, t)
	}
	r.setPermissionLocked(input.VotingTopicID, false)
	return *res, nil
}

// histories and ballots

type memHistories struct{ *memStore }

func (r memHistories) Ensure(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.histories[accountID]; !ok {
		r.histories[accountID] = &domain.History{AccountID: accountID}
	}
	return nil
}

func (r memHistories) Get(ctx context.Context, accountID string) (domain.History, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.histories[accountID]
	if !ok {
		return domain.History{}, domain.NotFoundError{Resource: "voting history"}
	}
	out := *h
	out.Entries = append([]domain.HistoryEntry(nil), h.Entries...)
	return out, nil
}

type memBallots struct{ *memStore }

func (r memBallots) Cast(ctx context.Context, b domain.Ballot) (domain.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var entry *domain.VoterTopicEntry
	for _, p := range r.voters {
		if p.ID != b.ProfileID {
			continue
		}
		for i := range p.VotingTopics {
			if p.VotingTopics[i].VotingTopicID == b.VotingTopicID {
				entry = &p.VotingTopics[i]
			}
		}
	}
	if entry == nil || !entry.IsVerified || !entry.VotingPermission || entry.HasVoted {
		return domain.HistoryEntry{}, domain.ForbiddenError{Reason: "not allowed to vote"}
	}

	var candidacy *domain.CandidacyEntry
	for _, p := range r.candidates {
		for i := range p.Candidacies {
			c := &p.Candidacies[i]
			if c.VotingTopicID == b.VotingTopicID && c.IsApproved && c.CandidateID != nil && *c.CandidateID == b.CandidateID {
				candidacy = c
			}
		}
	}
	if candidacy == nil {
		return domain.HistoryEntry{}, errors.WithStack(domain.NotFoundError{Resource: "approved candidate"})
	}

	entry.HasVoted = true
	entry.VotedTo = &b.CandidateID
	entry.VotedAt = &b.CastAt
	candidacy.VoteCount++

	h, ok := r.histories[b.AccountID]
	if !ok {
		h = &domain.History{AccountID: b.AccountID}
		r.histories[b.AccountID] = h
	}
	recorded := domain.HistoryEntry{
		VotingTopicID:   b.VotingTopicID,
		TopicName:       b.TopicName,
		VotedTo:         b.CandidateID,
		CandidateName:   b.CandidateName,
		VoteCountAtTime: candidacy.VoteCount,
		VotedAt:         b.CastAt,
	}
	h.Entries = append(h.Entries, recorded)
	return recorded, nil
}

// collaborators

type fakeGateway struct {
	winner     domain.ChainCandidate
	candidates []domain.ChainCandidate
	err        error
	calls      int
}

func (g *fakeGateway) GetWinner(ctx context.Context, votingTopicID string) (domain.ChainCandidate, error) {
	g.calls++
	return g.winner, g.err
}

func (g *fakeGateway) GetAllCandidates(ctx context.Context, votingTopicID string) ([]domain.ChainCandidate, error) {
	g.calls++
	return g.candidates, g.err
}

func (g *fakeGateway) GetAllCandidatesCached(ctx context.Context, votingTopicID string) ([]domain.ChainCandidate, error) {
	return g.GetAllCandidates(ctx, votingTopicID)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type sequenceGenerator struct {
	ids []string
}

func (g *sequenceGenerator) Generate(attempt int) string {
	return g.ids[attempt%len(g.ids)]
}

type recordingSignal struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (s *recordingSignal) Publish(ctx context.Context, channel string, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

type mapCountCache struct {
	values map[string]int64
}

func (c *mapCountCache) Get(ctx context.Context, key string) (int64, bool) {
	n, ok := c.values[key]
	return n, ok
}

func (c *mapCountCache) Set(ctx context.Context, key string, n int64) { c.values[key] = n }

func (c *mapCountCache) Invalidate(ctx context.Context, key string) { delete(c.values, key) }

// fixture wires every usecase onto one memStore.
type fixture struct {
	store   *memStore
	gateway *fakeGateway
	signal  *recordingSignal
	ids     *sequenceGenerator
	voter   *VoterUsecase
	owner   *TopicOwnerUsecase
	account *AccountUsecase
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	store := newMemStore()
	gw := &fakeGateway{}
	signal := &recordingSignal{}
	ids := &sequenceGenerator{ids: []string{"1714564800000"}}
	opts := []Option{
		WithClock(fixedClock{now: testNow}),
		WithSignal(signal),
		WithCandidateIDGenerator(ids),
	}
	return &fixture{
		store:   store,
		gateway: gw,
		signal:  signal,
		ids:     ids,
		voter: NewVoterUsecase(
			memAccounts{store}, memVoters{store}, memCandidates{store},
			memResults{store}, memHistories{store}, memBallots{store}, gw, opts...,
		),
		owner: NewTopicOwnerUsecase(
			memAccounts{store}, memVoters{store}, memCandidates{store},
			memTopics{store}, memResults{store}, gw, opts...,
		),
		account: NewAccountUsecase(
			memAccounts{store}, memTopics{store}, plainHasher{}, staticIssuer{}, opts...,
		),
	}
}

type plainHasher struct{}

func (plainHasher) HashPassword(password string) (string, error) { return "hashed:" + password, nil }

func (plainHasher) ComparePassword(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

type staticIssuer struct{}

func (staticIssuer) IssueTokens(account domain.Account) (domain.TokenPair, error) {
	return domain.TokenPair{AccessToken: "access-" + account.ID, RefreshToken: "refresh-" + account.ID}, nil
}
