package state

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/iden3/contracts-abi/state/go/abi"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	stateInfo abi.IStateStateInfo
	rootInfo  abi.IStateGistRootInfo
	err       error
	delay     time.Duration
}

func (f *fakeCaller) wait(opts *bind.CallOpts) error {
	if f.delay == 0 {
		return f.err
	}
	select {
	case <-time.After(f.delay):
		return f.err
	case <-opts.Context.Done():
		return opts.Context.Err()
	}
}

func (f *fakeCaller) GetStateInfoById(opts *bind.CallOpts, _ *big.Int) (abi.IStateStateInfo, error) {
	return f.stateInfo, f.wait(opts)
}

func (f *fakeCaller) GetStateInfoByIdAndState(opts *bind.CallOpts, _, _ *big.Int) (abi.IStateStateInfo, error) {
	return f.stateInfo, f.wait(opts)
}

func (f *fakeCaller) GetGISTRootInfo(opts *bind.CallOpts, _ *big.Int) (abi.IStateGistRootInfo, error) {
	return f.rootInfo, f.wait(opts)
}

func TestContractReader_Errors(t *testing.T) {
	tests := []struct {
		name     string
		caller   *fakeCaller
		expected error
	}{
		{
			name:     "timeout",
			caller:   &fakeCaller{delay: time.Second},
			expected: ErrResolutionTimeout,
		},
		{
			name:     "transport failure",
			caller:   &fakeCaller{err: errors.New("dial tcp: connection refused")},
			expected: ErrLedgerUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &contractReader{caller: tt.caller, timeout: 20 * time.Millisecond}

			_, err := r.GetStateInfoByID(context.Background(), big.NewInt(1))
			require.True(t, errors.Is(err, tt.expected), "got %v", err)

			_, err = r.GetGISTRootInfo(context.Background(), big.NewInt(1))
			require.True(t, errors.Is(err, tt.expected), "got %v", err)
		})
	}
}

func TestContractReader_CallerCancel(t *testing.T) {
	r := &contractReader{caller: &fakeCaller{delay: time.Second}, timeout: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.GetStateInfoByID(ctx, big.NewInt(1))
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestContractReader_RevertsAreEmptyRecords(t *testing.T) {
	r := &contractReader{
		caller:  &fakeCaller{err: errors.New("execution reverted: Identity does not exist")},
		timeout: time.Second,
	}
	info, err := r.GetStateInfoByID(context.Background(), big.NewInt(1))
	require.NoError(t, err)
	require.Nil(t, info.State)

	r.caller = &fakeCaller{err: errors.New("execution reverted: Root does not exist")}
	_, err = ResolveGlobalRoot(context.Background(), r, big.NewInt(1))
	require.True(t, errors.Is(err, ErrGistNotFound), "got %v", err)
}

func TestContractReader_ConvertsRecords(t *testing.T) {
	r := &contractReader{
		caller: &fakeCaller{stateInfo: abi.IStateStateInfo{
			Id:                  big.NewInt(1),
			State:               big.NewInt(2),
			ReplacedByState:     big.NewInt(3),
			CreatedAtTimestamp:  big.NewInt(4),
			ReplacedAtTimestamp: big.NewInt(5),
			CreatedAtBlock:      big.NewInt(6),
			ReplacedAtBlock:     big.NewInt(7),
		}},
		timeout: time.Second,
	}
	info, err := r.GetStateInfoByIDAndState(context.Background(), big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, int64(5), info.ReplacedAtTimestamp.Int64())
	require.Equal(t, int64(1), info.ID.Int64())
}
