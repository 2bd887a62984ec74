package pubsignals

import "github.com/pkg/errors"

// malformed input
var (
	ErrSignalCountMismatch = errors.New("public signals count mismatch")
	ErrMalformedSignal     = errors.New("public signal is not a non-negative integer")
	ErrUnsupportedCircuit  = errors.New("public signals verifier for circuit is not registered")
	ErrInvalidQuery        = errors.New("query is not valid")
	ErrNegativeValue       = errors.New("query value must be positive integer")
)

// ownership
var (
	ErrOwnershipMismatch  = errors.New("sender is not used for proof creation")
	ErrQueriesUnsupported = errors.New("circuit doesn't support queries")
)

// query policy
var (
	ErrMultipleFieldsUnsupported     = errors.New("multiple requests not supported")
	ErrMultiplePredicatesUnsupported = errors.New("multiple predicates for one field not supported")
	ErrSchemaLoadFailed              = errors.New("can't load the schema")
	ErrSchemaMismatch                = errors.New("schema that was used is not equal to requested in query")
	ErrIssuerNotAllowed              = errors.New("issuer is not in allowed list")
	ErrSlotMismatch                  = errors.New("wrong claim slot was used in claim")
	ErrPathMismatch                  = errors.New("proof was generated for another path")
	ErrOperatorMismatch              = errors.New("operator that was used is not equal to request")
	ErrValuesMismatch                = errors.New("comparison value that was used is not equal to requested in query")
	ErrUnsupportedOperatorForType    = errors.New("operator is not supported for field type")
	ErrRevocationCheckRequired       = errors.New("check revocation is required")
	ErrProofOutdated                 = errors.New("generated proof is outdated")
	ErrEmptyCredentialSubject        = errors.New("proof doesn't match empty credentialSubject request")

	ErrSelectiveDisclosureMissingPresentation = errors.New("selective disclosure value is missed")
	ErrSelectiveDisclosureOperator            = errors.New("selective disclosure available only for equal operation")
	ErrSelectiveDisclosureArray               = errors.New("selective disclosure not available for array of values")
	ErrSelectiveDisclosureValueMismatch       = errors.New("different value between proof and disclosure value")
	ErrSelectiveDisclosureInvalidPresentation = errors.New("verifiable presentation doesn't contain disclosed value")
)

// atomic query V3 and linked queries
var (
	ErrWrongProofType           = errors.New("invalid proof type")
	ErrVerifierDIDRequired      = errors.New("verifier did is required for nullifier verification")
	ErrWrongVerifier            = errors.New("wrong verifier is used for nullification")
	ErrNullifierSessionMismatch = errors.New("wrong verifier session id is used for nullification")
	ErrQueryHashMismatch        = errors.New("query hashes do not match")
)

// states
var (
	ErrUserStateIsNotValid        = errors.New("user state is not valid")
	ErrIssuerClaimStateIsNotValid = errors.New("issuer state is not valid")
)
