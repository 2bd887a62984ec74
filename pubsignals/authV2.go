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

// AuthV2 holds the public signals of the authV2 circuit.
type AuthV2 struct {
	UserID    identifier.ID
	Challenge *big.Int
	GISTRoot  *big.Int
}

// PubSignalsUnmarshal decodes userID, challenge and gistRoot.
func (c *AuthV2) PubSignalsUnmarshal(signals []string) error {
	r, err := newSignalReader(circuits.AuthV2CircuitID, signals, 3)
	if err != nil {
		return err
	}
	userID := r.id()
	challenge := r.bigInt()
	gistRoot := r.bigInt()
	if r.err != nil {
		return r.err
	}
	c.UserID, c.Challenge, c.GISTRoot = userID, challenge, gistRoot
	return nil
}

// VerifyQuery is not implemented for authV2 circuit.
func (c *AuthV2) VerifyQuery(
	_ context.Context,
	query Query,
	_ ld.DocumentLoader,
	_ json.RawMessage,
	_ map[string]any,
	_ ...VerifyOpt,
) (CircuitVerificationResult, error) {
	if !query.IsEmpty() {
		return CircuitVerificationResult{}, errors.Wrap(ErrQueriesUnsupported, string(circuits.AuthV2CircuitID))
	}
	return CircuitVerificationResult{}, nil
}

// VerifyStates verifies the GIST root the proof was built against.
func (c *AuthV2) VerifyStates(ctx context.Context, stateResolvers map[string]StateResolver, opts ...VerifyOpt) error {
	resolver, err := resolverFor(stateResolvers, c.UserID)
	if err != nil {
		return err
	}
	resolvedState, err := resolver.ResolveGlobalRoot(ctx, c.GISTRoot)
	if err != nil {
		return err
	}

	cfg := newVerifyConfig(defaultAuthVerifyOpts, opts)
	return resolvedState.CheckFreshness(cfg.AcceptedStateTransitionDelay, cfg.Now())
}

// VerifyIDOwnership returns error if ownership id wasn't verified in circuit.
func (c *AuthV2) VerifyIDOwnership(sender identifier.Sender, challenge *big.Int) error {
	if err := checkUser(sender, c.UserID); err != nil {
		return err
	}
	return checkChallenge(challenge, c.Challenge, "challenge")
}
