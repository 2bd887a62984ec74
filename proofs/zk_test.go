package proofs

import (
	"context"
	"testing"

	"github.com/iden3/go-rapidsnark/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestVerifyProof_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		proof types.ZKProof
		err   error
	}{
		{
			name:  "empty proof",
			proof: types.ZKProof{PubSignals: []string{"1"}},
			err:   ErrEmptyProof,
		},
		{
			name: "plonk",
			proof: types.ZKProof{
				Proof:      &types.ProofData{Protocol: "plonk"},
				PubSignals: []string{"1"},
			},
			err: ErrUnsupportedProtocol,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyProof(tt.proof, []byte(`{}`))
			require.True(t, errors.Is(err, tt.err), "got %v", err)
		})
	}
}

func TestVerifyProof_InvalidKey(t *testing.T) {
	proof := types.ZKProof{
		Proof: &types.ProofData{
			A:        []string{"1", "2", "1"},
			B:        [][]string{{"1", "0"}, {"0", "1"}, {"1", "0"}},
			C:        []string{"1", "2", "1"},
			Protocol: Groth16,
		},
		PubSignals: []string{"1"},
	}
	require.Error(t, VerifyProof(proof, []byte(`not a key`)))
}

func TestRapidsnarkVerifier_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RapidsnarkVerifier{}.Verify(ctx, types.ZKProof{}, nil)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestProofVerifierFunc(t *testing.T) {
	called := false
	var v ProofVerifier = ProofVerifierFunc(func(context.Context, types.ZKProof, []byte) error {
		called = true
		return nil
	})
	require.NoError(t, v.Verify(context.Background(), types.ZKProof{}, nil))
	require.True(t, called)
}
