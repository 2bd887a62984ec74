package state_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/iden3/go-iden3-verifier/state"
	mock_state "github.com/iden3/go-iden3-verifier/state/mock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var mockGenesisID, _ = new(big.Int).SetString("371135506535866236563870411357090963344408827476607986362864968105378316288", 10)
var mockGenesisState, _ = new(big.Int).SetString("16751774198505232045539489584666775489135471631443877047826295522719290880931", 10)

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		state       *big.Int
		prepareMock func(m *mock_state.MockLedgerReader)
		expected    *state.ResolvedState
		expectedErr error
	}{
		{
			name:  "genesis state without record in block-chain",
			state: mockGenesisState,
			prepareMock: func(m *mock_state.MockLedgerReader) {
				m.EXPECT().GetStateInfoByID(gomock.Any(), mockGenesisID).Return(state.StateInfo{}, nil)
			},
			expected: &state.ResolvedState{
				State:   mockGenesisState.String(),
				Latest:  true,
				Genesis: true,
			},
		},
		{
			name:  "non genesis state without record in block-chain",
			state: big.NewInt(100),
			prepareMock: func(m *mock_state.MockLedgerReader) {
				m.EXPECT().GetStateInfoByID(gomock.Any(), mockGenesisID).Return(state.StateInfo{State: big.NewInt(0)}, nil)
			},
			expectedErr: state.ErrStateNotRegistered,
		},
		{
			name:  "genesis state is the latest record",
			state: mockGenesisState,
			prepareMock: func(m *mock_state.MockLedgerReader) {
				m.EXPECT().GetStateInfoByID(gomock.Any(), mockGenesisID).Return(state.StateInfo{
					ID:    mockGenesisID,
					State: mockGenesisState,
				}, nil)
			},
			expected: &state.ResolvedState{State: mockGenesisState.String(), Latest: true, Genesis: true},
		},
		{
			name:  "latest record of another identity",
			state: mockGenesisState,
			prepareMock: func(m *mock_state.MockLedgerReader) {
				m.EXPECT().GetStateInfoByID(gomock.Any(), mockGenesisID).Return(state.StateInfo{
					ID:    big.NewInt(1),
					State: mockGenesisState,
				}, nil)
			},
			expectedErr: state.ErrStateOwnerMismatch,
		},
		{
			name:  "the blockchain contains a newer state record",
			state: big.NewInt(200),
			prepareMock: func(m *mock_state.MockLedgerReader) {
				m.EXPECT().GetStateInfoByID(gomock.Any(), mockGenesisID).Return(state.StateInfo{
					ID:    mockGenesisID,
					State: big.NewInt(300),
				}, nil)
				m.EXPECT().GetStateInfoByIDAndState(gomock.Any(), mockGenesisID, big.NewInt(200)).Return(state.StateInfo{
					ID:                  mockGenesisID,
					State:               big.NewInt(200),
					ReplacedByState:     big.NewInt(300),
					ReplacedAtTimestamp: big.NewInt(1000),
				}, nil)
			},
			expected: &state.ResolvedState{State: "200", TransitionTimestamp: 1000},
		},
		{
			name:  "newer state record without transition info",
			state: big.NewInt(200),
			prepareMock: func(m *mock_state.MockLedgerReader) {
				m.EXPECT().GetStateInfoByID(gomock.Any(), mockGenesisID).Return(state.StateInfo{
					ID:    mockGenesisID,
					State: big.NewInt(300),
				}, nil)
				m.EXPECT().GetStateInfoByIDAndState(gomock.Any(), mockGenesisID, big.NewInt(200)).
					Return(state.StateInfo{}, nil)
			},
			expectedErr: state.ErrUnknownTransition,
		},
		{
			name:  "ledger failure is returned as is",
			state: mockGenesisState,
			prepareMock: func(m *mock_state.MockLedgerReader) {
				m.EXPECT().GetStateInfoByID(gomock.Any(), mockGenesisID).
					Return(state.StateInfo{}, errors.Wrap(state.ErrLedgerUnavailable, "connection refused"))
			},
			expectedErr: state.ErrLedgerUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			m := mock_state.NewMockLedgerReader(ctrl)
			tt.prepareMock(m)

			resolved, err := state.Resolve(context.Background(), m, mockGenesisID, tt.state)
			if tt.expectedErr != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tt.expectedErr), "got %v", err)
				require.Nil(t, resolved)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, resolved)
		})
	}
}

func TestResolveGlobalRoot(t *testing.T) {
	root := big.NewInt(555)

	tests := []struct {
		name        string
		info        state.GistRootInfo
		expected    *state.ResolvedState
		expectedErr error
	}{
		{
			name:        "root is not registered",
			info:        state.GistRootInfo{},
			expectedErr: state.ErrGistNotFound,
		},
		{
			name: "stored root differs",
			info: state.GistRootInfo{
				Root:               big.NewInt(556),
				CreatedAtTimestamp: big.NewInt(10),
			},
			expectedErr: state.ErrGistCorrupt,
		},
		{
			name: "root was replaced",
			info: state.GistRootInfo{
				Root:                root,
				ReplacedByRoot:      big.NewInt(600),
				CreatedAtTimestamp:  big.NewInt(10),
				ReplacedAtTimestamp: big.NewInt(20),
			},
			expected: &state.ResolvedState{State: "555", TransitionTimestamp: 20},
		},
		{
			name: "latest root",
			info: state.GistRootInfo{
				Root:               root,
				ReplacedByRoot:     big.NewInt(0),
				CreatedAtTimestamp: big.NewInt(10),
			},
			expected: &state.ResolvedState{State: "555", Latest: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			m := mock_state.NewMockLedgerReader(ctrl)
			m.EXPECT().GetGISTRootInfo(gomock.Any(), root).Return(tt.info, nil)

			resolved, err := state.ResolveGlobalRoot(context.Background(), m, root)
			if tt.expectedErr != nil {
				require.True(t, errors.Is(err, tt.expectedErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, resolved)
		})
	}
}

func TestCheckFreshness(t *testing.T) {
	now := time.Unix(10_000, 0)

	latest := &state.ResolvedState{Latest: true}
	require.NoError(t, latest.CheckFreshness(time.Minute, now))

	recent := &state.ResolvedState{State: "1", TransitionTimestamp: 10_000 - 60}
	require.NoError(t, recent.CheckFreshness(5*time.Minute, now))

	old := &state.ResolvedState{State: "1", TransitionTimestamp: 10_000 - 3600}
	err := old.CheckFreshness(5*time.Minute, now)
	require.True(t, errors.Is(err, state.ErrStateOutdated))
}
