package pubsignals

import (
	"time"

	"github.com/iden3/go-iden3-verifier/constants"
	"github.com/iden3/go-iden3-verifier/identifier"
)

var (
	defaultAuthVerifyOpts = VerifyConfig{
		AcceptedStateTransitionDelay: constants.AuthAcceptedStateTransitionDelay,
	}
	defaultProofVerifyOpts = VerifyConfig{
		AcceptedStateTransitionDelay: constants.AcceptedStateTransitionDelay,
		AcceptedProofGenerationDelay: constants.AcceptedProofGenerationDelay,
		IssuerStateLatest:            true,
	}
)

// WithAcceptedStateTransitionDelay sets the delay of the revoked state.
func WithAcceptedStateTransitionDelay(duration time.Duration) VerifyOpt {
	return func(v *VerifyConfig) {
		v.AcceptedStateTransitionDelay = duration
	}
}

// WithAcceptedProofGenerationDelay sets the delay of the proof generation.
func WithAcceptedProofGenerationDelay(duration time.Duration) VerifyOpt {
	return func(v *VerifyConfig) {
		v.AcceptedProofGenerationDelay = duration
	}
}

// WithSupportSdOperator sets the flag of supporting SD operator (v3) or replacing it to EQ (v2).
func WithSupportSdOperator(supportSdOperator bool) VerifyOpt {
	return func(v *VerifyConfig) {
		v.SupportSdOperator = supportSdOperator
	}
}

// WithVerifierDID sets the did nullifiers must be bound to.
func WithVerifierDID(did *identifier.DID) VerifyOpt {
	return func(v *VerifyConfig) {
		v.VerifierDID = did
	}
}

// WithIssuerStateLatest sets whether the issuer claim state must be the
// latest one. It is required by default; false accepts any registered or
// genesis state.
func WithIssuerStateLatest(latest bool) VerifyOpt {
	return func(v *VerifyConfig) {
		v.IssuerStateLatest = latest
	}
}

// WithClock replaces time.Now in freshness checks.
func WithClock(now func() time.Time) VerifyOpt {
	return func(v *VerifyConfig) {
		v.Now = now
	}
}

// VerifyOpt sets options.
type VerifyOpt func(v *VerifyConfig)

// VerifyConfig verifiers options.
type VerifyConfig struct {
	// is the period of time that a revoked state remains valid.
	AcceptedStateTransitionDelay time.Duration
	AcceptedProofGenerationDelay time.Duration
	SupportSdOperator            bool
	VerifierDID                  *identifier.DID
	IssuerStateLatest            bool
	Now                          func() time.Time
}

func newVerifyConfig(def VerifyConfig, opts []VerifyOpt) VerifyConfig {
	cfg := def
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg
}

// ParamNameVerifierDID is a verifier did - specific  circuit param for V3, but can be utilized by other circuits
const ParamNameVerifierDID = "verifierDid"

// ParamNameNullifierSessionID is a nullifier session id - specific  circuit param for V3 to generate nullifier
const ParamNameNullifierSessionID = "nullifierSessionId"
