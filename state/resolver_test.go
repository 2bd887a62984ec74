package state_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/iden3/go-iden3-verifier/cache"
	"github.com/iden3/go-iden3-verifier/state"
	mock_state "github.com/iden3/go-iden3-verifier/state/mock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestResolver_UsesCacheIfPresent(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mock_state.NewMockLedgerReader(ctrl)

	stateCache := cache.NewInMemoryCache[state.ResolvedState](10, time.Minute)
	stateCache.Set("1-2", state.ResolvedState{Latest: true, State: "2"})

	r := state.NewResolver(m, &state.ResolverOptions{
		StateCacheOptions: &state.CacheOptions{Cache: stateCache},
	})

	resolved, err := r.Resolve(context.Background(), big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)
	require.True(t, resolved.Latest)
}

func TestResolver_CachesResolvedState(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mock_state.NewMockLedgerReader(ctrl)
	m.EXPECT().GetStateInfoByID(gomock.Any(), mockGenesisID).Return(state.StateInfo{}, nil).Times(1)

	r := state.NewResolver(m, nil)
	for i := 0; i < 3; i++ {
		resolved, err := r.Resolve(context.Background(), mockGenesisID, mockGenesisState)
		require.NoError(t, err)
		require.True(t, resolved.Genesis)
	}
}

func TestResolver_DoesNotCacheErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mock_state.NewMockLedgerReader(ctrl)
	m.EXPECT().GetGISTRootInfo(gomock.Any(), big.NewInt(7)).
		Return(state.GistRootInfo{}, errors.Wrap(state.ErrResolutionTimeout, "deadline")).Times(2)

	r := state.NewResolver(m, nil)
	for i := 0; i < 2; i++ {
		_, err := r.ResolveGlobalRoot(context.Background(), big.NewInt(7))
		require.True(t, errors.Is(err, state.ErrResolutionTimeout))
	}
}

func TestResolver_RootTTLSplit(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mock_state.NewMockLedgerReader(ctrl)
	m.EXPECT().GetGISTRootInfo(gomock.Any(), big.NewInt(7)).Return(state.GistRootInfo{
		Root:               big.NewInt(7),
		CreatedAtTimestamp: big.NewInt(1),
	}, nil).Times(2)

	r := state.NewResolver(m, &state.ResolverOptions{
		RootCacheOptions: &state.CacheOptions{
			NotReplacedTTL: 50 * time.Millisecond,
			ReplacedTTL:    time.Hour,
		},
	})

	_, err := r.ResolveGlobalRoot(context.Background(), big.NewInt(7))
	require.NoError(t, err)
	_, err = r.ResolveGlobalRoot(context.Background(), big.NewInt(7))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	_, err = r.ResolveGlobalRoot(context.Background(), big.NewInt(7))
	require.NoError(t, err)
}
