package pubsignals

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/iden3/go-circuits/v2"
	"github.com/iden3/go-iden3-verifier/identifier"
	"github.com/piprate/json-gold/ld"
)

// AtomicQueryMTPV2 holds the public signals of credentialAtomicQueryMTPV2.
type AtomicQueryMTPV2 struct {
	Merklized              int
	UserID                 identifier.ID
	RequestID              *big.Int
	IssuerID               identifier.ID
	IssuerClaimIdenState   *big.Int
	IsRevocationChecked    int
	IssuerClaimNonRevState *big.Int
	Timestamp              int64
	ClaimSchema            *big.Int
	ClaimPathNotExists     int
	ClaimPathKey           *big.Int
	SlotIndex              int
	Operator               int
	Value                  []*big.Int
}

// PubSignalsUnmarshal decodes the 77 signals of the circuit.
func (c *AtomicQueryMTPV2) PubSignalsUnmarshal(signals []string) error {
	r, err := newSignalReader(circuits.AtomicQueryMTPV2CircuitID, signals, 13+valuesCount)
	if err != nil {
		return err
	}
	out := AtomicQueryMTPV2{
		Merklized:              r.int(),
		UserID:                 r.id(),
		RequestID:              r.bigInt(),
		IssuerID:               r.id(),
		IssuerClaimIdenState:   r.bigInt(),
		IsRevocationChecked:    r.int(),
		IssuerClaimNonRevState: r.bigInt(),
		Timestamp:              r.int64(),
		ClaimSchema:            r.bigInt(),
		ClaimPathNotExists:     r.int(),
		ClaimPathKey:           r.bigInt(),
		SlotIndex:              r.int(),
		Operator:               r.int(),
		Value:                  r.values(valuesCount),
	}
	if r.err != nil {
		return r.err
	}
	*c = out
	return nil
}

// VerifyQuery verifies query for atomic query mtp circuit.
func (c *AtomicQueryMTPV2) VerifyQuery(
	ctx context.Context,
	query Query,
	schemaLoader ld.DocumentLoader,
	verifiablePresentation json.RawMessage,
	_ map[string]any,
	opts ...VerifyOpt,
) (CircuitVerificationResult, error) {
	err := query.Check(ctx, schemaLoader, &ClaimOutputs{
		IssuerID:            c.IssuerID,
		ClaimSchema:         c.ClaimSchema,
		SlotIndex:           c.SlotIndex,
		Operator:            c.Operator,
		Value:               c.Value,
		Timestamp:           c.Timestamp,
		Merklized:           c.Merklized,
		ClaimPathKey:        c.ClaimPathKey,
		ClaimPathNotExists:  c.ClaimPathNotExists,
		IsRevocationChecked: c.IsRevocationChecked,
	}, verifiablePresentation, opts...)
	return CircuitVerificationResult{}, err
}

// VerifyStates verifies issuer claim issuance state and, unless revocation
// was not checked, the issuer non-revocation state.
func (c *AtomicQueryMTPV2) VerifyStates(ctx context.Context, stateResolvers map[string]StateResolver, opts ...VerifyOpt) error {
	resolver, err := resolverFor(stateResolvers, c.IssuerID)
	if err != nil {
		return err
	}
	var nonRevState *big.Int
	if c.IsRevocationChecked != 0 {
		nonRevState = c.IssuerClaimNonRevState
	}
	cfg := newVerifyConfig(defaultProofVerifyOpts, opts)
	return verifyIssuerStates(ctx, resolver, c.IssuerID, c.IssuerClaimIdenState, nonRevState, cfg)
}

// VerifyIDOwnership returns error if ownership id wasn't verified in circuit.
func (c *AtomicQueryMTPV2) VerifyIDOwnership(sender identifier.Sender, requestID *big.Int) error {
	if err := checkUser(sender, c.UserID); err != nil {
		return err
	}
	return checkChallenge(requestID, c.RequestID, "requestID")
}
