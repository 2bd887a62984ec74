package pubsignals

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/iden3/go-iden3-verifier/identifier"
	"github.com/iden3/go-iden3-verifier/state"
	"github.com/piprate/json-gold/ld"
	"github.com/pkg/errors"
)

// StateResolver is a state resolver of one chain.
type StateResolver = state.StateResolver

// DefaultResolverKey selects the resolver used for identities whose type
// carries no chain, such as identifiers derived from unsupported senders.
const DefaultResolverKey = "*"

// Verifier is interface for verification of public signals of zkp
type Verifier interface {
	// PubSignalsUnmarshal decodes the positional signals. On error no field
	// is populated.
	PubSignalsUnmarshal(signals []string) error
	VerifyIDOwnership(sender identifier.Sender, challenge *big.Int) error
	VerifyQuery(
		ctx context.Context,
		query Query,
		schemaLoader ld.DocumentLoader,
		verifiablePresentation json.RawMessage,
		params map[string]any,
		opts ...VerifyOpt,
	) (CircuitVerificationResult, error)
	VerifyStates(ctx context.Context, stateResolvers map[string]StateResolver, opts ...VerifyOpt) error
}

// CircuitVerificationResult carries the values a proof exposes to the
// orchestrator after its query is verified.
type CircuitVerificationResult struct {
	LinkID         *big.Int
	Nullifier      *big.Int
	OperatorOutput *big.Int
}

func resolverFor(resolvers map[string]StateResolver, id identifier.ID) (StateResolver, error) {
	key, err := identifier.ChainKey(id)
	if err != nil {
		if r, ok := resolvers[DefaultResolverKey]; ok {
			return r, nil
		}
		return nil, errors.Wrapf(state.ErrResolverNotFound, "identity %s: %v", id, err)
	}
	if r, ok := resolvers[key]; ok {
		return r, nil
	}
	if r, ok := resolvers[DefaultResolverKey]; ok {
		return r, nil
	}
	return nil, errors.Wrapf(state.ErrResolverNotFound, "%s resolver not found", key)
}

func checkUser(sender identifier.Sender, userID identifier.ID) error {
	if !sender.ID().Matches(userID) {
		return errors.Wrapf(ErrOwnershipMismatch,
			"expected %s, user from public signals: %s", sender.ID(), userID)
	}
	return nil
}

func checkChallenge(expected, actual *big.Int, name string) error {
	if expected == nil || actual == nil || expected.Cmp(actual) != 0 {
		return errors.Wrapf(ErrOwnershipMismatch,
			"%s is not used for proof creation, expected %v, %s from public signals: %v",
			name, expected, name, actual)
	}
	return nil
}

func isZero(i *big.Int) bool {
	return i == nil || i.Sign() == 0
}

// verifyIssuerStates checks the issuer claim state and, when nonRevState is
// set, the freshness of the issuer non-revocation state.
func verifyIssuerStates(
	ctx context.Context,
	resolver StateResolver,
	issuerID identifier.ID,
	issuerState, nonRevState *big.Int,
	cfg VerifyConfig,
) error {
	issuerStateResolved, err := resolver.Resolve(ctx, issuerID.BigInt(), issuerState)
	if err != nil {
		return err
	}
	if issuerStateResolved == nil {
		return ErrIssuerClaimStateIsNotValid
	}
	if cfg.IssuerStateLatest && !issuerStateResolved.Latest {
		return errors.Wrapf(ErrIssuerClaimStateIsNotValid, "state %s is not latest", issuerState)
	}

	if nonRevState == nil {
		return nil
	}
	nonRevResolved, err := resolver.Resolve(ctx, issuerID.BigInt(), nonRevState)
	if err != nil {
		return err
	}
	return nonRevResolved.CheckFreshness(cfg.AcceptedStateTransitionDelay, cfg.Now())
}

// verifyUserStateLatest is used by legacy circuits that expose the user state.
func verifyUserStateLatest(ctx context.Context, resolver StateResolver, userID identifier.ID, userState *big.Int) error {
	resolved, err := resolver.Resolve(ctx, userID.BigInt(), userState)
	if err != nil {
		return err
	}
	if !resolved.Latest {
		return ErrUserStateIsNotValid
	}
	return nil
}
