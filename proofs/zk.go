package proofs

import (
	"context"

	"github.com/iden3/go-rapidsnark/types"
	"github.com/iden3/go-rapidsnark/verifier"
	"github.com/pkg/errors"
)

// Groth16 is the only proving system accepted by the verifier.
const Groth16 = "groth16"

var (
	// ErrUnsupportedProtocol is returned for proofs of other proving systems.
	ErrUnsupportedProtocol = errors.New("proof protocol is not supported")
	// ErrEmptyProof is returned when a response carries no proof data.
	ErrEmptyProof = errors.New("proof is empty")
)

// ProofVerifier checks a zero-knowledge proof against its verification key.
type ProofVerifier interface {
	Verify(ctx context.Context, proof types.ZKProof, verificationKey []byte) error
}

// ProofVerifierFunc adapts a function to ProofVerifier.
type ProofVerifierFunc func(ctx context.Context, proof types.ZKProof, verificationKey []byte) error

// Verify calls f.
func (f ProofVerifierFunc) Verify(ctx context.Context, proof types.ZKProof, verificationKey []byte) error {
	return f(ctx, proof, verificationKey)
}

// RapidsnarkVerifier verifies groth16 proofs with the rapidsnark verifier.
type RapidsnarkVerifier struct{}

// Verify performs the pairing check of a groth16 proof.
func (RapidsnarkVerifier) Verify(ctx context.Context, proof types.ZKProof, verificationKey []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return VerifyProof(proof, verificationKey)
}

// VerifyProof performs a groth16 proof check.
func VerifyProof(proof types.ZKProof, verificationKey []byte) error {
	if proof.Proof == nil {
		return ErrEmptyProof
	}
	switch proof.Proof.Protocol {
	case Groth16:
		return verifier.VerifyGroth16(proof, verificationKey)
	default:
		return errors.Wrapf(ErrUnsupportedProtocol, "%q", proof.Proof.Protocol)
	}
}
