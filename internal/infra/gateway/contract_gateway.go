package gateway

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dvote-dapp/dvote/internal/domain"
)

var tracer = otel.Tracer("gateway")

// VotingSystemABI is the read-only surface of the deployed voting contract.
const VotingSystemABI = `[
  {"type":"function","name":"getWinner","stateMutability":"view",
   "inputs":[{"name":"_votingTopicId","type":"string","internalType":"string"}],
   "outputs":[{"name":"","type":"tuple","internalType":"struct VotingSystem.Candidate","components":[
     {"name":"id","type":"uint256","internalType":"uint256"},
     {"name":"name","type":"string","internalType":"string"},
     {"name":"voteCount","type":"uint256","internalType":"uint256"}]}]},
  {"type":"function","name":"getAllCandidates","stateMutability":"view",
   "inputs":[{"name":"_votingTopicId","type":"string","internalType":"string"}],
   "outputs":[{"name":"","type":"tuple[]","internalType":"struct VotingSystem.Candidate[]","components":[
     {"name":"id","type":"uint256","internalType":"uint256"},
     {"name":"name","type":"string","internalType":"string"},
     {"name":"voteCount","type":"uint256","internalType":"uint256"}]}]}
]`

type onChainCandidate struct {
	Id        *big.Int
	Name      string
	VoteCount *big.Int
}

func (c onChainCandidate) toDomain() domain.ChainCandidate {
	out := domain.ChainCandidate{Name: c.Name}
	if c.Id != nil {
		out.ID = c.Id.String()
	}
	if c.VoteCount != nil {
		out.VoteCount = c.VoteCount.Int64()
	}
	return out
}

type ContractGateway struct {
	contract *bind.BoundContract
	cache    *cache.Cache
	timeout  time.Duration
}

// NewContractGateway binds the voting contract at address. Tally reads served
// through GetAllCandidatesCached live for ttl.
func NewContractGateway(caller bind.ContractCaller, address string, timeout, ttl time.Duration) (*ContractGateway, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address %q", address)
	}
	parsed, err := abi.JSON(strings.NewReader(VotingSystemABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse contract abi")
	}
	return &ContractGateway{
		contract: bind.NewBoundContract(common.HexToAddress(address), parsed, caller, nil, nil),
		cache:    cache.New(ttl, 2*ttl),
		timeout:  timeout,
	}, nil
}

func (g *ContractGateway) call(ctx context.Context, method, votingTopicID string) ([]interface{}, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var out []interface{}
	err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, votingTopicID)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s", method)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty output", method)
	}
	return out, nil
}

func (g *ContractGateway) GetWinner(ctx context.Context, votingTopicID string) (domain.ChainCandidate, error) {
	ctx, span := tracer.Start(ctx, "Contract.Gateway.GetWinner")
	defer span.End()
	span.SetAttributes(attribute.String("votingTopicId", votingTopicID))

	out, err := g.call(ctx, "getWinner", votingTopicID)
	if err != nil {
		span.RecordError(err)
		return domain.ChainCandidate{}, err
	}

	winner := *abi.ConvertType(out[0], new(onChainCandidate)).(*onChainCandidate)
	return winner.toDomain(), nil
}

func (g *ContractGateway) GetAllCandidates(ctx context.Context, votingTopicID string) ([]domain.ChainCandidate, error) {
	ctx, span := tracer.Start(ctx, "Contract.Gateway.GetAllCandidates")
	defer span.End()
	span.SetAttributes(attribute.String("votingTopicId", votingTopicID))

	out, err := g.call(ctx, "getAllCandidates", votingTopicID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	raw := *abi.ConvertType(out[0], new([]onChainCandidate)).(*[]onChainCandidate)
	candidates := make([]domain.ChainCandidate, 0, len(raw))
	for _, c := range raw {
		candidates = append(candidates, c.toDomain())
	}

	g.cache.Set(votingTopicID, candidates, cache.DefaultExpiration)
	return candidates, nil
}

// GetAllCandidatesCached serves the live tally read path. Publication always
// goes through GetAllCandidates.
func (g *ContractGateway) GetAllCandidatesCached(ctx context.Context, votingTopicID string) ([]domain.ChainCandidate, error) {
	if cached, found := g.cache.Get(votingTopicID); found {
		return cached.([]domain.ChainCandidate), nil
	}
	return g.GetAllCandidates(ctx, votingTopicID)
}
