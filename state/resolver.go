package state

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/iden3/contracts-abi/state/go/abi"
	"github.com/iden3/go-iden3-verifier/cache"
	"github.com/iden3/go-iden3-verifier/constants"
	"github.com/pkg/errors"
)

// contract revert reasons that mean "no record" rather than a failure
const (
	revertIdentityNotExist = "Identity does not exist"
	revertStateNotExist    = "State does not exist"
	revertRootNotExist     = "Root does not exist"
)

// CacheOptions holds caching behavior configuration
type CacheOptions struct {
	// TTL for latest (not replaced) entries
	NotReplacedTTL time.Duration
	// TTL for historical (replaced) entries
	ReplacedTTL time.Duration
	// Maximum number of entries in the cache
	MaxSize int64
	// Optional custom cache implementation
	Cache cache.ICache[ResolvedState]
}

func (o *CacheOptions) withDefaults(def constants.CacheTTLOptions) *CacheOptions {
	out := CacheOptions{}
	if o != nil {
		out = *o
	}
	if out.NotReplacedTTL == 0 {
		out.NotReplacedTTL = def.NotReplacedTTL
	}
	if out.ReplacedTTL == 0 {
		out.ReplacedTTL = def.ReplacedTTL
	}
	if out.MaxSize == 0 {
		out.MaxSize = constants.DefaultCacheMaxSize
	}
	if out.Cache == nil {
		out.Cache = cache.NewInMemoryCache[ResolvedState](out.MaxSize, out.ReplacedTTL)
	}
	return &out
}

func (o *CacheOptions) ttlFor(r *ResolvedState) time.Duration {
	if r.Latest {
		return o.NotReplacedTTL
	}
	return o.ReplacedTTL
}

// ResolverOptions is the full config for ETHResolver
type ResolverOptions struct {
	// Bound of every ledger call, constants.DefaultRPCTimeout when zero
	Timeout time.Duration
	// Caching options for state resolution
	StateCacheOptions *CacheOptions
	// Caching options for GIST root resolution
	RootCacheOptions *CacheOptions
}

// ETHResolver resolves states against a State contract of an EVM chain.
type ETHResolver struct {
	RPCUrl          string
	ContractAddress common.Address

	ethClient  *ethclient.Client
	reader     LedgerReader
	stateCache *CacheOptions
	rootCache  *CacheOptions
}

// NewETHResolver dials url and binds the State contract at contract.
func NewETHResolver(url, contract string, opts *ResolverOptions) (*ETHResolver, error) {
	if !common.IsHexAddress(contract) {
		return nil, errors.Errorf("invalid state contract address %q", contract)
	}
	ethClient, err := ethclient.Dial(url)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to RPC %s", url)
	}
	stateCaller, err := abi.NewStateCaller(common.HexToAddress(contract), ethClient)
	if err != nil {
		ethClient.Close()
		return nil, errors.Wrap(err, "failed to create state caller")
	}

	if opts == nil {
		opts = &ResolverOptions{}
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = constants.DefaultRPCTimeout
	}

	r := NewResolver(&contractReader{caller: stateCaller, timeout: timeout}, opts)
	r.RPCUrl = url
	r.ContractAddress = common.HexToAddress(contract)
	r.ethClient = ethClient
	return r, nil
}

// NewResolver builds a caching resolver over any ledger reader.
func NewResolver(reader LedgerReader, opts *ResolverOptions) *ETHResolver {
	if opts == nil {
		opts = &ResolverOptions{}
	}
	return &ETHResolver{
		reader:     reader,
		stateCache: opts.StateCacheOptions.withDefaults(constants.StateCacheOptions),
		rootCache:  opts.RootCacheOptions.withDefaults(constants.GistRootCacheOptions),
	}
}

// Resolve returns the resolved state of identity id.
func (r *ETHResolver) Resolve(ctx context.Context, id, state *big.Int) (*ResolvedState, error) {
	key := fmt.Sprintf("%s-%s", id, state)
	if cached, ok := r.stateCache.Cache.Get(key); ok {
		return &cached, nil
	}
	resolved, err := Resolve(ctx, r.reader, id, state)
	if err != nil {
		return nil, err
	}
	r.stateCache.Cache.Set(key, *resolved, r.stateCache.ttlFor(resolved))
	return resolved, nil
}

// ResolveGlobalRoot returns the resolved GIST root.
func (r *ETHResolver) ResolveGlobalRoot(ctx context.Context, root *big.Int) (*ResolvedState, error) {
	key := root.String()
	if cached, ok := r.rootCache.Cache.Get(key); ok {
		return &cached, nil
	}
	resolved, err := ResolveGlobalRoot(ctx, r.reader, root)
	if err != nil {
		return nil, err
	}
	r.rootCache.Cache.Set(key, *resolved, r.rootCache.ttlFor(resolved))
	return resolved, nil
}

// Close closes the ETHResolver, its underlying client and caches that
// hold connections.
func (r *ETHResolver) Close() error {
	if r.ethClient != nil {
		r.ethClient.Close()
	}
	var firstErr error
	for _, c := range []cache.ICache[ResolvedState]{r.stateCache.Cache, r.rootCache.Cache} {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// stateCaller is the subset of the contract binding used for reads.
type stateCaller interface {
	GetStateInfoById(opts *bind.CallOpts, id *big.Int) (abi.IStateStateInfo, error)
	GetStateInfoByIdAndState(opts *bind.CallOpts, id, state *big.Int) (abi.IStateStateInfo, error)
	GetGISTRootInfo(opts *bind.CallOpts, root *big.Int) (abi.IStateGistRootInfo, error)
}

type contractReader struct {
	caller  stateCaller
	timeout time.Duration
}

func (c *contractReader) GetStateInfoByID(ctx context.Context, id *big.Int) (StateInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	info, err := c.caller.GetStateInfoById(&bind.CallOpts{Context: ctx}, id)
	if err != nil {
		if isRevert(err, revertIdentityNotExist) {
			return StateInfo{}, nil
		}
		return StateInfo{}, ledgerError(ctx, err, "getStateInfoById")
	}
	return stateInfoFromABI(info), nil
}

func (c *contractReader) GetStateInfoByIDAndState(ctx context.Context, id, state *big.Int) (StateInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	info, err := c.caller.GetStateInfoByIdAndState(&bind.CallOpts{Context: ctx}, id, state)
	if err != nil {
		if isRevert(err, revertStateNotExist) || isRevert(err, revertIdentityNotExist) {
			return StateInfo{}, nil
		}
		return StateInfo{}, ledgerError(ctx, err, "getStateInfoByIdAndState")
	}
	return stateInfoFromABI(info), nil
}

func (c *contractReader) GetGISTRootInfo(ctx context.Context, root *big.Int) (GistRootInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	info, err := c.caller.GetGISTRootInfo(&bind.CallOpts{Context: ctx}, root)
	if err != nil {
		if isRevert(err, revertRootNotExist) {
			return GistRootInfo{}, nil
		}
		return GistRootInfo{}, ledgerError(ctx, err, "getGISTRootInfo")
	}
	return GistRootInfo{
		Root:                info.Root,
		ReplacedByRoot:      info.ReplacedByRoot,
		CreatedAtTimestamp:  info.CreatedAtTimestamp,
		ReplacedAtTimestamp: info.ReplacedAtTimestamp,
		CreatedAtBlock:      info.CreatedAtBlock,
		ReplacedAtBlock:     info.ReplacedAtBlock,
	}, nil
}

func stateInfoFromABI(info abi.IStateStateInfo) StateInfo {
	return StateInfo{
		ID:                  info.Id,
		State:               info.State,
		ReplacedByState:     info.ReplacedByState,
		CreatedAtTimestamp:  info.CreatedAtTimestamp,
		ReplacedAtTimestamp: info.ReplacedAtTimestamp,
		CreatedAtBlock:      info.CreatedAtBlock,
		ReplacedAtBlock:     info.ReplacedAtBlock,
	}
}

func isRevert(err error, reason string) bool {
	return strings.Contains(err.Error(), reason)
}

// ledgerError classifies a failed call. ctx is the call context that
// carries the per-call deadline.
func ledgerError(ctx context.Context, err error, method string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(ErrResolutionTimeout, "%s: %v", method, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return errors.Wrapf(ErrLedgerUnavailable, "%s: %v", method, err)
}
