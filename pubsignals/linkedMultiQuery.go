package pubsignals

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"github.com/iden3/go-circuits/v2"
	"github.com/iden3/go-iden3-verifier/identifier"
	"github.com/iden3/go-schema-processor/v2/merklize"
	"github.com/piprate/json-gold/ld"
	"github.com/pkg/errors"
)

// LinkedMultiQuery holds the public signals of the linkedMultiQuery
// circuits. QueryLength is the number of query slots of the circuit.
type LinkedMultiQuery struct {
	QueryLength int

	LinkID           *big.Int
	Merklized        int
	OperatorOutput   []*big.Int
	CircuitQueryHash []*big.Int
}

// PubSignalsUnmarshal decodes linkID, merklized and QueryLength operator
// outputs followed by QueryLength query hashes.
func (c *LinkedMultiQuery) PubSignalsUnmarshal(signals []string) error {
	id := circuits.CircuitID(fmt.Sprintf("linkedMultiQuery%d-beta.1", c.QueryLength))
	r, err := newSignalReader(id, signals, 2+2*c.QueryLength)
	if err != nil {
		return err
	}
	linkID := r.bigInt()
	merklized := r.int()
	outputs := r.values(c.QueryLength)
	hashes := r.values(c.QueryLength)
	if r.err != nil {
		return r.err
	}
	c.LinkID, c.Merklized, c.OperatorOutput, c.CircuitQueryHash = linkID, merklized, outputs, hashes
	return nil
}

// VerifyQuery recomputes the hash of every predicate of the query and
// matches the set against the hashes exposed by the circuit.
func (c *LinkedMultiQuery) VerifyQuery(
	ctx context.Context,
	query Query,
	schemaLoader ld.DocumentLoader,
	verifiablePresentation json.RawMessage,
	_ map[string]any,
	_ ...VerifyOpt,
) (CircuitVerificationResult, error) {
	schemaBytes, err := loadSchema(schemaLoader, query.Context)
	if err != nil {
		return CircuitVerificationResult{}, err
	}
	sh, err := schemaHash(schemaBytes, query.Type, schemaLoader)
	if err != nil {
		return CircuitVerificationResult{}, err
	}

	metas, err := ParseQueriesMetadata(ctx, query.Type, string(schemaBytes), query.CredentialSubject,
		merklize.Options{DocumentLoader: schemaLoader})
	if err != nil {
		return CircuitVerificationResult{}, metadataError(err)
	}
	if len(metas) > c.QueryLength {
		return CircuitVerificationResult{}, errors.Wrapf(ErrQueryHashMismatch,
			"%d queries for %d circuit slots", len(metas), c.QueryLength)
	}

	hashes := make([]*big.Int, len(metas))
	for i, m := range metas {
		hashes[i], err = CalculateQueryHash(m.Values, sh, m.SlotIndex, m.Operator, m.ClaimPathKey, m.MerklizedSchema)
		if err != nil {
			return CircuitVerificationResult{}, err
		}
	}

	if !sameSorted(hashes, c.CircuitQueryHash[:len(hashes)]) {
		return CircuitVerificationResult{}, ErrQueryHashMismatch
	}

	for i, m := range metas {
		if m.Operator != circuits.SD {
			continue
		}
		if err := c.verifyDisclosure(ctx, hashes[i], m, verifiablePresentation, schemaLoader); err != nil {
			return CircuitVerificationResult{}, err
		}
	}

	return CircuitVerificationResult{LinkID: c.LinkID}, nil
}

func (c *LinkedMultiQuery) verifyDisclosure(
	ctx context.Context,
	queryHash *big.Int,
	meta QueryMetadata,
	verifiablePresentation json.RawMessage,
	schemaLoader ld.DocumentLoader,
) error {
	mvBig, err := fieldValueFromVerifiablePresentation(ctx, verifiablePresentation, schemaLoader, meta.FieldName)
	if err != nil {
		return err
	}
	for j, h := range c.CircuitQueryHash {
		if h.Cmp(queryHash) != 0 {
			continue
		}
		if c.OperatorOutput[j].Cmp(mvBig) != 0 {
			return errors.Wrapf(ErrSelectiveDisclosureValueMismatch, "field %s", meta.FieldName)
		}
		return nil
	}
	return errors.Wrapf(ErrQueryHashMismatch, "no circuit query for disclosed field %s", meta.FieldName)
}

func sameSorted(a, b []*big.Int) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]*big.Int(nil), a...)
	sb := append([]*big.Int(nil), b...)
	less := func(s []*big.Int) func(i, j int) bool {
		return func(i, j int) bool { return s[i].Cmp(s[j]) < 0 }
	}
	sort.Slice(sa, less(sa))
	sort.Slice(sb, less(sb))
	for i := range sa {
		if sa[i].Cmp(sb[i]) != 0 {
			return false
		}
	}
	return true
}

// VerifyStates is a no-op: linked queries carry no identity state.
func (c *LinkedMultiQuery) VerifyStates(_ context.Context, _ map[string]StateResolver, _ ...VerifyOpt) error {
	return nil
}

// VerifyIDOwnership is a no-op: ownership is proven by the linked V3 proof.
func (c *LinkedMultiQuery) VerifyIDOwnership(_ identifier.Sender, _ *big.Int) error {
	return nil
}
