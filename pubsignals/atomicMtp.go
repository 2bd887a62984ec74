package pubsignals

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/iden3/go-circuits/v2"
	"github.com/iden3/go-iden3-verifier/identifier"
	"github.com/piprate/json-gold/ld"
)

// AtomicQueryMTP holds the public signals of the legacy
// credentialAtomicQueryMTP circuit.
type AtomicQueryMTP struct {
	UserID               identifier.ID
	UserState            *big.Int
	Challenge            *big.Int
	IssuerClaimIdenState *big.Int
	IssuerID             identifier.ID
	Timestamp            int64
	ClaimSchema          *big.Int
	SlotIndex            int
	Operator             int
	Value                []*big.Int
}

// PubSignalsUnmarshal decodes the 73 signals of the circuit.
func (c *AtomicQueryMTP) PubSignalsUnmarshal(signals []string) error {
	r, err := newSignalReader(circuits.AtomicQueryMTPCircuitID, signals, 9+valuesCount)
	if err != nil {
		return err
	}
	out := AtomicQueryMTP{
		UserID:               r.id(),
		UserState:            r.bigInt(),
		Challenge:            r.bigInt(),
		IssuerClaimIdenState: r.bigInt(),
		IssuerID:             r.id(),
		Timestamp:            r.int64(),
		ClaimSchema:          r.bigInt(),
		SlotIndex:            r.int(),
		Operator:             r.int(),
		Value:                r.values(valuesCount),
	}
	if r.err != nil {
		return r.err
	}
	*c = out
	return nil
}

// VerifyQuery verifies query for atomic query mtp circuit.
func (c *AtomicQueryMTP) VerifyQuery(
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
		IsRevocationChecked: 1,
	}, verifiablePresentation, opts...)
	return CircuitVerificationResult{}, err
}

// VerifyStates verifies user state and issuer claim issuance state in the smart contract.
func (c *AtomicQueryMTP) VerifyStates(ctx context.Context, stateResolvers map[string]StateResolver, opts ...VerifyOpt) error {
	userResolver, err := resolverFor(stateResolvers, c.UserID)
	if err != nil {
		return err
	}
	if err := verifyUserStateLatest(ctx, userResolver, c.UserID, c.UserState); err != nil {
		return err
	}

	issuerResolver, err := resolverFor(stateResolvers, c.IssuerID)
	if err != nil {
		return err
	}
	cfg := newVerifyConfig(defaultProofVerifyOpts, opts)
	return verifyIssuerStates(ctx, issuerResolver, c.IssuerID, c.IssuerClaimIdenState, nil, cfg)
}

// VerifyIDOwnership returns error if ownership id wasn't verified in circuit.
func (c *AtomicQueryMTP) VerifyIDOwnership(sender identifier.Sender, challenge *big.Int) error {
	if err := checkUser(sender, c.UserID); err != nil {
		return err
	}
	return checkChallenge(challenge, c.Challenge, "challenge")
}
