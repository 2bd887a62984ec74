package pubsignals

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/iden3/go-circuits/v2"
	"github.com/iden3/go-iden3-verifier/identifier"
	"github.com/iden3/go-iden3-verifier/state"
	"github.com/iden3/go-schema-processor/v2/merklize"
	"github.com/iden3/go-schema-processor/v2/utils"
	"github.com/piprate/json-gold/ld"
	"github.com/pkg/errors"
)

// Query represents structure for query to atomic circuit.
type Query struct {
	AllowedIssuers           []string       `json:"allowedIssuers"`
	CredentialSubject        map[string]any `json:"credentialSubject,omitempty"`
	Context                  string         `json:"context"`
	Type                     string         `json:"type"`
	ClaimID                  string         `json:"claimId,omitempty"`
	SkipClaimRevocationCheck bool           `json:"skipClaimRevocationCheck,omitempty"`
	ProofType                string         `json:"proofType,omitempty"`
	GroupID                  int            `json:"groupId,omitempty"`
	// VerifierSessionID is used when the request params carry no
	// nullifierSessionId.
	VerifierSessionID string `json:"-"`
}

// QueryFromMap decodes the query object of a proof request.
func QueryFromMap(m map[string]any) (Query, error) {
	var q Query
	if m == nil {
		return q, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return q, errors.Wrap(ErrInvalidQuery, err.Error())
	}
	if err := json.Unmarshal(b, &q); err != nil {
		return q, errors.Wrap(ErrInvalidQuery, err.Error())
	}
	return q, nil
}

// IsEmpty reports whether the query asks nothing about a credential.
func (q Query) IsEmpty() bool {
	return q.Context == "" && q.Type == "" && len(q.CredentialSubject) == 0 && len(q.AllowedIssuers) == 0
}

// ClaimOutputs are the query related public signals of an atomic circuit.
type ClaimOutputs struct {
	IssuerID            identifier.ID
	ClaimSchema         *big.Int
	SlotIndex           int
	Operator            int
	Value               []*big.Int
	Timestamp           int64
	Merklized           int
	ClaimPathKey        *big.Int
	ClaimPathNotExists  int
	ValueArraySize      int
	IsRevocationChecked int

	LinkID            *big.Int
	OperatorOutput    *big.Int
	Nullifier         *big.Int
	VerifierID        *big.Int
	VerifierSessionID *big.Int
	ProofType         int
}

// Check verifies that the claim outputs of a proof answer the query.
func (q Query) Check(
	ctx context.Context,
	loader ld.DocumentLoader,
	out *ClaimOutputs,
	verifiablePresentation json.RawMessage,
	opts ...VerifyOpt,
) error {
	cfg := newVerifyConfig(defaultProofVerifyOpts, opts)

	if err := checkSinglePredicate(q.CredentialSubject); err != nil {
		return err
	}

	schemaBytes, err := loadSchema(loader, q.Context)
	if err != nil {
		return err
	}

	if err := verifySchemaHash(schemaBytes, q.Type, loader, out.ClaimSchema); err != nil {
		return err
	}

	if !q.issuerAllowed(out.IssuerID) {
		return errors.Wrapf(ErrIssuerNotAllowed, "issuer %s", out.IssuerID)
	}

	metas, err := ParseQueriesMetadata(ctx, q.Type, string(schemaBytes), q.CredentialSubject,
		merklize.Options{DocumentLoader: loader})
	if err != nil {
		return metadataError(err)
	}
	meta := metas[0]

	if err := verifyClaimLocation(meta, out); err != nil {
		return err
	}

	if cfg.SupportSdOperator {
		err = verifyCredentialSubjectV3(ctx, out, verifiablePresentation, loader, meta)
	} else {
		err = verifyCredentialSubjectV2(ctx, out, verifiablePresentation, loader, meta)
	}
	if err != nil {
		return err
	}

	if !q.SkipClaimRevocationCheck && out.IsRevocationChecked == 0 {
		return ErrRevocationCheckRequired
	}

	if cfg.Now().Sub(time.Unix(out.Timestamp, 0)) > cfg.AcceptedProofGenerationDelay {
		return errors.Wrapf(ErrProofOutdated, "proof generated at %d", out.Timestamp)
	}
	return nil
}

func (q Query) issuerAllowed(issuer identifier.ID) bool {
	for _, i := range q.AllowedIssuers {
		if i == "*" {
			return true
		}
		did, err := identifier.ParseDID(i)
		if err != nil {
			continue
		}
		if did.ID.Matches(issuer) {
			return true
		}
	}
	return false
}

func checkSinglePredicate(credentialSubject map[string]any) error {
	if len(credentialSubject) > 1 {
		return ErrMultipleFieldsUnsupported
	}
	for field, body := range credentialSubject {
		predicate, ok := body.(map[string]any)
		if !ok {
			return errors.Wrapf(ErrInvalidQuery, "predicate of %q is not an object", field)
		}
		if len(predicate) > 1 {
			return errors.Wrapf(ErrMultiplePredicatesUnsupported, "field %q", field)
		}
	}
	return nil
}

// loadSchema fetches the JSON-LD context document and returns it as JSON.
func loadSchema(loader ld.DocumentLoader, url string) ([]byte, error) {
	if loader == nil {
		return nil, errors.Wrap(ErrSchemaLoadFailed, "no document loader")
	}
	doc, err := loader.LoadDocument(url)
	if err != nil {
		if errors.Is(err, state.ErrResolutionTimeout) {
			return nil, err
		}
		return nil, errors.Wrapf(ErrSchemaLoadFailed, "%s: %v", url, err)
	}
	b, err := json.Marshal(doc.Document)
	if err != nil {
		return nil, errors.Wrapf(ErrSchemaLoadFailed, "%s: %v", url, err)
	}
	return b, nil
}

func schemaHash(schemaBytes []byte, credentialType string, loader ld.DocumentLoader) (*big.Int, error) {
	schemaID, err := merklize.Options{DocumentLoader: loader}.
		TypeIDFromContext(schemaBytes, credentialType)
	if err != nil {
		return nil, errors.Wrapf(ErrSchemaMismatch, "type %s: %v", credentialType, err)
	}
	return utils.CreateSchemaHash([]byte(schemaID)).BigInt(), nil
}

func verifySchemaHash(schemaBytes []byte, credentialType string, loader ld.DocumentLoader, claimSchema *big.Int) error {
	sh, err := schemaHash(schemaBytes, credentialType, loader)
	if err != nil {
		return err
	}
	if claimSchema == nil || sh.Cmp(claimSchema) != 0 {
		return ErrSchemaMismatch
	}
	return nil
}

func metadataError(err error) error {
	if errors.Is(err, ErrNegativeValue) || errors.Is(err, ErrInvalidQuery) {
		return err
	}
	return errors.Wrap(ErrInvalidQuery, err.Error())
}

func verifyClaimLocation(meta QueryMetadata, out *ClaimOutputs) error {
	if meta.FieldName == "" {
		return nil
	}
	if !meta.MerklizedSchema {
		if out.Merklized != 0 || meta.SlotIndex != out.SlotIndex {
			return errors.Wrapf(ErrSlotMismatch, "expected slot %d, got %d", meta.SlotIndex, out.SlotIndex)
		}
		return nil
	}
	if out.Merklized != 1 || out.ClaimPathKey == nil || meta.ClaimPathKey.Cmp(out.ClaimPathKey) != 0 {
		return errors.Wrapf(ErrPathMismatch, "field %s", meta.FieldName)
	}
	return nil
}

// verifyCredentialSubjectV2 treats selective disclosure as EQ with the
// disclosed value in the first value slot.
func verifyCredentialSubjectV2(
	ctx context.Context,
	out *ClaimOutputs,
	verifiablePresentation json.RawMessage,
	loader ld.DocumentLoader,
	meta QueryMetadata,
) error {
	if meta.Operator == circuits.SD {
		mvBig, err := fieldValueFromVerifiablePresentation(ctx, verifiablePresentation, loader, meta.FieldName)
		if err != nil {
			return err
		}
		if out.Operator != circuits.EQ {
			return ErrSelectiveDisclosureOperator
		}
		if !zeroFrom(out.Value, 1) {
			return ErrSelectiveDisclosureArray
		}
		if len(out.Value) == 0 || out.Value[0].Cmp(mvBig) != 0 {
			return ErrSelectiveDisclosureValueMismatch
		}
		return nil
	}

	if meta.Operator == circuits.NOOP && meta.FieldName == "" && out.Merklized == 1 {
		return verifyEmptyCredentialSubjectV2(out, meta.Path)
	}

	return verifyOperatorAndValues(out, meta, false)
}

func verifyEmptyCredentialSubjectV2(out *ClaimOutputs, credSubjectPath *merklize.Path) error {
	if out.Operator != circuits.EQ {
		return errors.Wrap(ErrEmptyCredentialSubject, "available only for equal operation")
	}
	if !zeroFrom(out.Value, 1) {
		return errors.Wrap(ErrEmptyCredentialSubject, "not available for array of values")
	}
	bi, err := credSubjectPath.MtEntry()
	if err != nil {
		return err
	}
	if out.ClaimPathKey == nil || out.ClaimPathKey.Cmp(bi) != 0 {
		return errors.Wrap(ErrEmptyCredentialSubject, "proof doesn't contain credentialSubject in claimPathKey")
	}
	return nil
}

func verifyCredentialSubjectV3(
	ctx context.Context,
	out *ClaimOutputs,
	verifiablePresentation json.RawMessage,
	loader ld.DocumentLoader,
	meta QueryMetadata,
) error {
	if meta.Operator == circuits.SD {
		mvBig, err := fieldValueFromVerifiablePresentation(ctx, verifiablePresentation, loader, meta.FieldName)
		if err != nil {
			return err
		}
		if out.Operator != circuits.SD {
			return ErrSelectiveDisclosureOperator
		}
		if out.OperatorOutput == nil || out.OperatorOutput.Cmp(mvBig) != 0 {
			return ErrSelectiveDisclosureValueMismatch
		}
		if !zeroFrom(out.Value, 0) {
			return ErrSelectiveDisclosureArray
		}
		return nil
	}

	if meta.FieldName == "" {
		if out.Operator != circuits.NOOP {
			return errors.Wrap(ErrEmptyCredentialSubject, "available only for noop operation")
		}
		if !zeroFrom(out.Value, 0) {
			return errors.Wrap(ErrEmptyCredentialSubject, "not available for array of values")
		}
		return nil
	}

	return verifyOperatorAndValues(out, meta, true)
}

func verifyOperatorAndValues(out *ClaimOutputs, meta QueryMetadata, checkArraySize bool) error {
	if meta.Operator != out.Operator {
		return errors.Wrapf(ErrOperatorMismatch, "expected %s, got %s",
			operatorName(meta.Operator), operatorName(out.Operator))
	}

	k := len(meta.Values)
	if k > len(out.Value) {
		return errors.Wrapf(ErrValuesMismatch, "query has %d values, proof carries %d", k, len(out.Value))
	}
	if checkArraySize && out.ValueArraySize != k {
		return errors.Wrapf(ErrValuesMismatch, "value array size %d, expected %d", out.ValueArraySize, k)
	}
	if !sameValues(meta.Values, out.Value[:k]) {
		return ErrValuesMismatch
	}
	if !zeroFrom(out.Value, k) {
		return errors.Wrap(ErrValuesMismatch, "values after the queried ones must be zero")
	}
	if !IsValidOperation(meta.Datatype, meta.Operator) {
		return errors.Wrapf(ErrUnsupportedOperatorForType,
			"%s for %s", operatorName(meta.Operator), meta.Datatype)
	}
	return nil
}

// sameValues compares a and b as multisets.
func sameValues(a, b []*big.Int) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, v := range a {
		counts[v.String()]++
	}
	for _, v := range b {
		if v == nil {
			return false
		}
		key := v.String()
		if counts[key] == 0 {
			return false
		}
		counts[key]--
	}
	return true
}

func zeroFrom(values []*big.Int, from int) bool {
	for i := from; i < len(values); i++ {
		if !isZero(values[i]) {
			return false
		}
	}
	return true
}
