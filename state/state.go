package state

import (
	"context"
	"math/big"
	"time"

	"github.com/iden3/go-iden3-verifier/identifier"
	"github.com/pkg/errors"
)

var (
	// ErrStateNotRegistered is returned for a non-genesis state the ledger has no record of.
	ErrStateNotRegistered = errors.New("state is not genesis and not registered in the smart contract")
	// ErrStateOwnerMismatch is returned when the ledger record belongs to another identity.
	ErrStateOwnerMismatch = errors.New("transition info contains invalid id")
	// ErrUnknownTransition is returned for a non-latest state without a replacement time.
	ErrUnknownTransition = errors.New("no information of transition for non-latest state")
	// ErrGistNotFound is returned when the global root has no creation record.
	ErrGistNotFound = errors.New("gist state not registered in the smart contract")
	// ErrGistCorrupt is returned when the stored root differs from the requested one.
	ErrGistCorrupt = errors.New("gist info contains invalid state")
	// ErrStateOutdated is returned when a replaced state is older than the accepted window.
	ErrStateOutdated = errors.New("state is outdated")
	// ErrResolutionTimeout is returned when a ledger read exceeds its deadline.
	ErrResolutionTimeout = errors.New("state resolution timed out")
	// ErrLedgerUnavailable is returned on transport failures of a ledger read.
	ErrLedgerUnavailable = errors.New("ledger is unavailable")
	// ErrResolverNotFound is returned when no resolver is configured for a chain.
	ErrResolverNotFound = errors.New("resolver not found")
)

// StateInfo is the ledger record of an identity state.
type StateInfo struct {
	ID                  *big.Int
	State               *big.Int
	ReplacedByState     *big.Int
	CreatedAtTimestamp  *big.Int
	ReplacedAtTimestamp *big.Int
	CreatedAtBlock      *big.Int
	ReplacedAtBlock     *big.Int
}

// GistRootInfo is the ledger record of a global identity state tree root.
type GistRootInfo struct {
	Root                *big.Int
	ReplacedByRoot      *big.Int
	CreatedAtTimestamp  *big.Int
	ReplacedAtTimestamp *big.Int
	CreatedAtBlock      *big.Int
	ReplacedAtBlock     *big.Int
}

// LedgerReader reads state records of one chain.
//
//go:generate mockgen -destination=mock/LedgerReaderMock.go . LedgerReader
type LedgerReader interface {
	GetStateInfoByID(ctx context.Context, id *big.Int) (StateInfo, error)
	GetStateInfoByIDAndState(ctx context.Context, id, state *big.Int) (StateInfo, error)
	GetGISTRootInfo(ctx context.Context, root *big.Int) (GistRootInfo, error)
}

// StateResolver resolves identity states and GIST roots of one chain.
type StateResolver interface {
	Resolve(ctx context.Context, id, state *big.Int) (*ResolvedState, error)
	ResolveGlobalRoot(ctx context.Context, root *big.Int) (*ResolvedState, error)
}

// ResolvedState is the result of a state or root resolution.
type ResolvedState struct {
	State               string `json:"state"`
	Latest              bool   `json:"latest"`
	Genesis             bool   `json:"genesis"`
	TransitionTimestamp int64  `json:"transition_timestamp"`
}

// CheckFreshness accepts a latest state, or a replaced one whose
// replacement happened no longer than window before now.
func (r *ResolvedState) CheckFreshness(window time.Duration, now time.Time) error {
	if r.Latest {
		return nil
	}
	replacedAt := time.Unix(r.TransitionTimestamp, 0)
	if now.Sub(replacedAt) > window {
		return errors.Wrapf(ErrStateOutdated, "state %s replaced at %s, accepted delay %s",
			r.State, replacedAt.UTC().Format(time.RFC3339), window)
	}
	return nil
}

func isZero(i *big.Int) bool {
	return i == nil || i.Sign() == 0
}

func unix(i *big.Int) int64 {
	if i == nil {
		return 0
	}
	return i.Int64()
}

// Resolve judges state of identity id against the ledger record.
func Resolve(ctx context.Context, reader LedgerReader, id, state *big.Int) (*ResolvedState, error) {
	userID, err := identifier.FromBigIntCompat(id)
	if err != nil {
		return nil, err
	}
	isGenesis := identifier.IsGenesis(userID, state)

	info, err := reader.GetStateInfoByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if isZero(info.State) {
		if !isGenesis {
			return nil, errors.Wrapf(ErrStateNotRegistered, "identity %s, state %s", userID, state)
		}
		return &ResolvedState{Latest: true, Genesis: true, State: state.String()}, nil
	}
	if info.ID == nil || info.ID.Cmp(id) != 0 {
		return nil, errors.Wrapf(ErrStateOwnerMismatch, "expected %s, got %v", id, info.ID)
	}

	if info.State.Cmp(state) != 0 {
		// the latest record carries no replacement time of older states
		prior, err := reader.GetStateInfoByIDAndState(ctx, id, state)
		if err != nil {
			return nil, err
		}
		if isZero(prior.ReplacedAtTimestamp) {
			return nil, errors.Wrapf(ErrUnknownTransition, "identity %s, state %s", userID, state)
		}
		return &ResolvedState{
			State:               state.String(),
			TransitionTimestamp: prior.ReplacedAtTimestamp.Int64(),
		}, nil
	}

	return &ResolvedState{Latest: true, Genesis: isGenesis, State: state.String()}, nil
}

// ResolveGlobalRoot judges a GIST root against the ledger root history.
func ResolveGlobalRoot(ctx context.Context, reader LedgerReader, root *big.Int) (*ResolvedState, error) {
	info, err := reader.GetGISTRootInfo(ctx, root)
	if err != nil {
		return nil, err
	}

	if isZero(info.CreatedAtTimestamp) {
		return nil, errors.Wrapf(ErrGistNotFound, "root %s", root)
	}
	if info.Root == nil || info.Root.Cmp(root) != 0 {
		return nil, errors.Wrapf(ErrGistCorrupt, "expected %s, got %v", root, info.Root)
	}
	if !isZero(info.ReplacedByRoot) {
		return &ResolvedState{
			State:               root.String(),
			TransitionTimestamp: unix(info.ReplacedAtTimestamp),
		}, nil
	}
	return &ResolvedState{State: root.String(), Latest: true}, nil
}
