package pubsignals

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/iden3/go-circuits/v2"
	"github.com/iden3/go-iden3-verifier/identifier"
	"github.com/iden3/go-schema-processor/v2/verifiable"
	"github.com/piprate/json-gold/ld"
	"github.com/pkg/errors"
)

// proof type values of the V3 proofType signal
const (
	proofTypeSig = 1
	proofTypeMTP = 2
)

// AtomicQueryV3 holds the public signals of credentialAtomicQueryV3.
type AtomicQueryV3 struct {
	UserID                 identifier.ID
	Merklized              int
	IssuerState            *big.Int
	LinkID                 *big.Int
	Nullifier              *big.Int
	OperatorOutput         *big.Int
	ProofType              int
	RequestID              *big.Int
	IssuerID               identifier.ID
	IsRevocationChecked    int
	IssuerClaimNonRevState *big.Int
	Timestamp              int64
	ClaimSchema            *big.Int
	ClaimPathKey           *big.Int
	SlotIndex              int
	Operator               int
	Value                  []*big.Int
	ValueArraySize         int
	VerifierID             *big.Int
	VerifierSessionID      *big.Int
}

// PubSignalsUnmarshal decodes the 83 signals of the circuit.
func (c *AtomicQueryV3) PubSignalsUnmarshal(signals []string) error {
	r, err := newSignalReader(circuits.AtomicQueryV3CircuitID, signals, 19+valuesCount)
	if err != nil {
		return err
	}
	out := AtomicQueryV3{
		UserID:                 r.id(),
		Merklized:              r.int(),
		IssuerState:            r.bigInt(),
		LinkID:                 r.bigInt(),
		Nullifier:              r.bigInt(),
		OperatorOutput:         r.bigInt(),
		ProofType:              r.int(),
		RequestID:              r.bigInt(),
		IssuerID:               r.id(),
		IsRevocationChecked:    r.int(),
		IssuerClaimNonRevState: r.bigInt(),
		Timestamp:              r.int64(),
		ClaimSchema:            r.bigInt(),
		ClaimPathKey:           r.bigInt(),
		SlotIndex:              r.int(),
		Operator:               r.int(),
		Value:                  r.values(valuesCount),
		ValueArraySize:         r.int(),
		VerifierID:             r.bigInt(),
		VerifierSessionID:      r.bigInt(),
	}
	if r.err != nil {
		return r.err
	}
	*c = out
	return nil
}

// VerifyQuery verifies query for atomic query V3 circuit.
func (c *AtomicQueryV3) VerifyQuery(
	ctx context.Context,
	query Query,
	schemaLoader ld.DocumentLoader,
	verifiablePresentation json.RawMessage,
	params map[string]any,
	opts ...VerifyOpt,
) (CircuitVerificationResult, error) {
	opts = append(opts, WithSupportSdOperator(true))
	err := query.Check(ctx, schemaLoader, &ClaimOutputs{
		IssuerID:            c.IssuerID,
		ClaimSchema:         c.ClaimSchema,
		SlotIndex:           c.SlotIndex,
		Operator:            c.Operator,
		Value:               c.Value,
		Timestamp:           c.Timestamp,
		Merklized:           c.Merklized,
		ClaimPathKey:        c.ClaimPathKey,
		ValueArraySize:      c.ValueArraySize,
		IsRevocationChecked: c.IsRevocationChecked,
		LinkID:              c.LinkID,
		VerifierID:          c.VerifierID,
		VerifierSessionID:   c.VerifierSessionID,
		OperatorOutput:      c.OperatorOutput,
		Nullifier:           c.Nullifier,
		ProofType:           c.ProofType,
	}, verifiablePresentation, opts...)
	if err != nil {
		return CircuitVerificationResult{}, err
	}

	switch query.ProofType {
	case string(verifiable.BJJSignatureProofType):
		if c.ProofType != proofTypeSig {
			return CircuitVerificationResult{}, errors.Wrapf(ErrWrongProofType, "expected %d, got %d", proofTypeSig, c.ProofType)
		}
	case string(verifiable.Iden3SparseMerkleTreeProofType):
		if c.ProofType != proofTypeMTP {
			return CircuitVerificationResult{}, errors.Wrapf(ErrWrongProofType, "expected %d, got %d", proofTypeMTP, c.ProofType)
		}
	}

	if !isZero(c.Nullifier) {
		cfg := newVerifyConfig(defaultProofVerifyOpts, opts)
		if err := c.verifyNullifier(query, params, cfg); err != nil {
			return CircuitVerificationResult{}, err
		}
	}

	return CircuitVerificationResult{
		LinkID:         c.LinkID,
		Nullifier:      c.Nullifier,
		OperatorOutput: c.OperatorOutput,
	}, nil
}

func (c *AtomicQueryV3) verifyNullifier(query Query, params map[string]any, cfg VerifyConfig) error {
	verifierDID := cfg.VerifierDID
	if verifierDID == nil {
		if raw, ok := params[ParamNameVerifierDID].(string); ok {
			did, err := identifier.ParseDID(raw)
			if err != nil {
				return errors.Wrapf(ErrVerifierDIDRequired, "%s param: %v", ParamNameVerifierDID, err)
			}
			verifierDID = did
		}
	}
	if verifierDID == nil {
		return ErrVerifierDIDRequired
	}

	verifierID, err := identifier.FromBigIntCompat(c.VerifierID)
	if err != nil || !verifierID.Matches(verifierDID.ID) {
		return errors.Wrapf(ErrWrongVerifier, "expected %s", verifierDID.ID)
	}

	sessionID := query.VerifierSessionID
	if v, ok := params[ParamNameNullifierSessionID]; ok && v != nil {
		sessionID = fmt.Sprintf("%v", v)
	}
	expected, ok := new(big.Int).SetString(sessionID, 10)
	if !ok {
		return errors.Wrapf(ErrNullifierSessionMismatch, "verifier session id is not valid big int %q", sessionID)
	}
	if c.VerifierSessionID == nil || c.VerifierSessionID.Cmp(expected) != 0 {
		return errors.Wrapf(ErrNullifierSessionMismatch, "expected %s given %v", expected, c.VerifierSessionID)
	}
	return nil
}

// VerifyStates verifies issuer state and, unless revocation was not
// checked, the issuer non-revocation state.
func (c *AtomicQueryV3) VerifyStates(ctx context.Context, stateResolvers map[string]StateResolver, opts ...VerifyOpt) error {
	resolver, err := resolverFor(stateResolvers, c.IssuerID)
	if err != nil {
		return err
	}
	// if IsRevocationChecked is set to 0, skip validation of the issuer revocation status
	var nonRevState *big.Int
	if c.IsRevocationChecked != 0 {
		nonRevState = c.IssuerClaimNonRevState
	}
	cfg := newVerifyConfig(defaultProofVerifyOpts, opts)
	return verifyIssuerStates(ctx, resolver, c.IssuerID, c.IssuerState, nonRevState, cfg)
}

// VerifyIDOwnership returns error if ownership id wasn't verified in circuit.
func (c *AtomicQueryV3) VerifyIDOwnership(sender identifier.Sender, requestID *big.Int) error {
	if err := checkUser(sender, c.UserID); err != nil {
		return err
	}
	return checkChallenge(requestID, c.RequestID, "requestID")
}
