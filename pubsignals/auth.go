package pubsignals

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/iden3/go-circuits/v2"
	"github.com/iden3/go-iden3-verifier/identifier"
	"github.com/piprate/json-gold/ld"
	"github.com/pkg/errors"
)

// Auth holds the public signals of the legacy auth circuit.
type Auth struct {
	Challenge *big.Int
	UserState *big.Int
	UserID    identifier.ID
}

// PubSignalsUnmarshal decodes challenge, userState and userID.
func (c *Auth) PubSignalsUnmarshal(signals []string) error {
	r, err := newSignalReader(circuits.AuthCircuitID, signals, 3)
	if err != nil {
		return err
	}
	challenge := r.bigInt()
	userState := r.bigInt()
	userID := r.id()
	if r.err != nil {
		return r.err
	}
	c.Challenge, c.UserState, c.UserID = challenge, userState, userID
	return nil
}

// VerifyQuery is not implemented for auth circuit.
func (c *Auth) VerifyQuery(
	_ context.Context,
	query Query,
	_ ld.DocumentLoader,
	_ json.RawMessage,
	_ map[string]any,
	_ ...VerifyOpt,
) (CircuitVerificationResult, error) {
	if !query.IsEmpty() {
		return CircuitVerificationResult{}, errors.Wrap(ErrQueriesUnsupported, string(circuits.AuthCircuitID))
	}
	return CircuitVerificationResult{}, nil
}

// VerifyStates verifies that the user state is the latest one.
func (c *Auth) VerifyStates(ctx context.Context, stateResolvers map[string]StateResolver, _ ...VerifyOpt) error {
	resolver, err := resolverFor(stateResolvers, c.UserID)
	if err != nil {
		return err
	}
	resolvedState, err := resolver.Resolve(ctx, c.UserID.BigInt(), c.UserState)
	if err != nil {
		return err
	}
	// only latest for users are supported
	if !resolvedState.Latest {
		return ErrUserStateIsNotValid
	}
	return nil
}

// VerifyIDOwnership returns error if ownership id wasn't verified in circuit.
func (c *Auth) VerifyIDOwnership(sender identifier.Sender, challenge *big.Int) error {
	if err := checkUser(sender, c.UserID); err != nil {
		return err
	}
	return checkChallenge(challenge, c.Challenge, "challenge")
}
