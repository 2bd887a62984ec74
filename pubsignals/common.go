package pubsignals

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"github.com/iden3/go-circuits/v2"
	"github.com/iden3/go-iden3-crypto/poseidon"
	parser "github.com/iden3/go-schema-processor/v2/json"
	"github.com/iden3/go-schema-processor/v2/merklize"
	"github.com/iden3/go-schema-processor/v2/verifiable"
	"github.com/piprate/json-gold/ld"
	"github.com/pkg/errors"
)

// PropertyQuery is one field predicate of a credential subject request.
type PropertyQuery struct {
	FieldName     string
	Operator      int
	OperatorValue any
}

// QueryMetadata is a property query resolved against its JSON-LD schema.
type QueryMetadata struct {
	PropertyQuery
	SlotIndex       int
	Values          []*big.Int
	Path            *merklize.Path
	ClaimPathKey    *big.Int
	Datatype        string
	MerklizedSchema bool
}

const credentialSubjectFullKey = "https://www.w3.org/2018/credentials#credentialSubject" // #nosec G101

var allOperations = map[int]struct{}{
	circuits.EQ:         {},
	circuits.LT:         {},
	circuits.GT:         {},
	circuits.IN:         {},
	circuits.NIN:        {},
	circuits.NE:         {},
	circuits.LTE:        {},
	circuits.GTE:        {},
	circuits.BETWEEN:    {},
	circuits.NONBETWEEN: {},
	circuits.EXISTS:     {},
}

var equalityOperations = map[int]struct{}{
	circuits.EQ:     {},
	circuits.NE:     {},
	circuits.IN:     {},
	circuits.NIN:    {},
	circuits.EXISTS: {},
}

var availableTypesOperations = map[string]map[int]struct{}{
	ld.XSDBoolean:                   {circuits.EQ: {}, circuits.NE: {}, circuits.EXISTS: {}},
	ld.XSDInteger:                   allOperations,
	ld.XSDNS + "nonNegativeInteger": allOperations,
	ld.XSDNS + "positiveInteger":    allOperations,
	ld.XSDNS + "nonPositiveInteger": allOperations,
	ld.XSDNS + "negativeInteger":    allOperations,
	ld.XSDNS + "dateTime":           allOperations,
	ld.XSDString:                    equalityOperations,
	ld.XSDDouble:                    equalityOperations,
}

// ParseCredentialSubject splits a credential subject request into property
// queries ordered by field name. A nil or empty subject is one NOOP query.
func ParseCredentialSubject(_ context.Context, credentialSubject any) ([]PropertyQuery, error) {
	noop := []PropertyQuery{{Operator: circuits.NOOP}}
	if credentialSubject == nil {
		return noop, nil
	}

	jsonObject, ok := credentialSubject.(map[string]any)
	if !ok {
		return nil, errors.Wrap(ErrInvalidQuery, "credential subject is not an object")
	}
	if len(jsonObject) == 0 {
		return noop, nil
	}

	fields := make([]string, 0, len(jsonObject))
	for f := range jsonObject {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := []PropertyQuery{}
	for _, fieldName := range fields {
		fieldReq, ok := jsonObject[fieldName].(map[string]any)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidQuery, "predicate of %q is not an object", fieldName)
		}
		if len(fieldReq) == 0 {
			out = append(out, PropertyQuery{Operator: circuits.SD, FieldName: fieldName})
			continue
		}

		ops := make([]string, 0, len(fieldReq))
		for op := range fieldReq {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		for _, operatorName := range ops {
			operator, exists := circuits.QueryOperators[operatorName]
			if !exists {
				return nil, errors.Wrapf(ErrInvalidQuery, "operator %q is not supported by lib", operatorName)
			}
			out = append(out, PropertyQuery{
				Operator:      operator,
				FieldName:     fieldName,
				OperatorValue: fieldReq[operatorName],
			})
		}
	}
	return out, nil
}

// ParseQueryMetadata resolves path, slot, datatype and hashed values of a
// property query from the JSON-LD context of credentialType.
func ParseQueryMetadata(ctx context.Context, propertyQuery PropertyQuery, ldContextJSON, credentialType string, options merklize.Options) (*QueryMetadata, error) {
	query := &QueryMetadata{
		PropertyQuery: propertyQuery,
		ClaimPathKey:  big.NewInt(0),
		Values:        []*big.Int{},
		Path:          &merklize.Path{},
	}

	var err error
	if query.FieldName != "" {
		query.Datatype, err = options.TypeFromContext([]byte(ldContextJSON),
			fmt.Sprintf("%s.%s", credentialType, propertyQuery.FieldName))
		if err != nil {
			return nil, err
		}
	}

	var ctxObj map[string]any
	if err = json.Unmarshal([]byte(ldContextJSON), &ctxObj); err != nil {
		return nil, err
	}
	ldCtx, err := ld.NewContext(nil, nil).Parse(ctxObj["@context"])
	if err != nil {
		return nil, err
	}
	serAttr, err := verifiable.GetSerializationAttrFromParsedContext(ldCtx, credentialType)
	if err != nil {
		return nil, err
	}
	query.MerklizedSchema = serAttr == ""

	if !query.MerklizedSchema {
		if query.FieldName != "" {
			query.SlotIndex, err = parser.Parser{}.GetFieldSlotIndex(
				propertyQuery.FieldName, credentialType, []byte(ldContextJSON))
			if err != nil {
				return nil, err
			}
		}
	} else {
		path := merklize.Path{}
		if query.FieldName != "" {
			path, err = options.FieldPathFromContext([]byte(ldContextJSON), credentialType, propertyQuery.FieldName)
			if err != nil {
				return nil, err
			}
		}
		if err = path.Prepend(credentialSubjectFullKey); err != nil {
			return nil, err
		}
		query.ClaimPathKey, err = path.MtEntry()
		if err != nil {
			return nil, err
		}
		query.Path = &path
	}

	valueType := query.Datatype
	if propertyQuery.Operator == circuits.EXISTS {
		valueType = ld.XSDBoolean
	}
	query.Values, err = transformQueryValueToBigInts(ctx, propertyQuery.OperatorValue, valueType)
	if err != nil {
		return nil, err
	}
	return query, nil
}

// ParseQueriesMetadata parse credential subject and return array of query metadata
func ParseQueriesMetadata(ctx context.Context, credentialType, ldContextJSON string, credentialSubject map[string]any, options merklize.Options) ([]QueryMetadata, error) {
	var subject any
	if credentialSubject != nil {
		subject = credentialSubject
	}
	propertyQueries, err := ParseCredentialSubject(ctx, subject)
	if err != nil {
		return nil, err
	}
	out := make([]QueryMetadata, 0, len(propertyQueries))
	for _, pq := range propertyQueries {
		queryMetadata, err := ParseQueryMetadata(ctx, pq, ldContextJSON, credentialType, options)
		if err != nil {
			return nil, err
		}
		out = append(out, *queryMetadata)
	}
	return out, nil
}

func transformQueryValueToBigInts(_ context.Context, value any, ldType string) ([]*big.Int, error) {
	if ldType == "" || value == nil {
		return []*big.Int{}, nil
	}

	listOfValues, ok := value.([]any)
	if !ok {
		listOfValues = []any{value}
	}
	out := make([]*big.Int, len(listOfValues))
	for i, v := range listOfValues {
		if !isPositiveInteger(v) {
			return nil, errors.Wrapf(ErrNegativeValue, "%v", v)
		}
		h, err := merklize.HashValue(ldType, v)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidQuery, "value %v of type %s: %v", v, ldType, err)
		}
		out[i] = h
	}
	return out, nil
}

func isPositiveInteger(v any) bool {
	number, err := strconv.ParseFloat(fmt.Sprintf("%v", v), 64)
	if err != nil {
		// not a number
		return true
	}
	return number >= 0
}

// IsValidOperation checks if operation and type are supported.
func IsValidOperation(typ string, op int) bool {
	if op == circuits.NOOP {
		return true
	}
	ops, ok := availableTypesOperations[typ]
	if !ok {
		// unknown types are strings
		ops = availableTypesOperations[ld.XSDString]
	}
	_, ok = ops[op]
	return ok
}

func operatorName(op int) string {
	for name, v := range circuits.QueryOperators {
		if v == op {
			return name
		}
	}
	return strconv.Itoa(op)
}

// CalculateQueryHash calculates the hash a linked circuit exposes for one
// query: poseidon over schema, slot, operator, path and a sponge hash of
// the padded value array, then over that with array size and merklized flag.
func CalculateQueryHash(
	values []*big.Int,
	schemaHash *big.Int,
	slotIndex int,
	operator int,
	claimPathKey *big.Int,
	isMerklized bool,
) (*big.Int, error) {
	claimPathNotExists := big.NewInt(0)
	if operator == circuits.EXISTS && len(values) > 0 && values[0].Sign() == 0 {
		claimPathNotExists.SetInt64(1)
	}
	merklized := big.NewInt(0)
	if isMerklized {
		merklized.SetInt64(1)
	}

	valArrSize := big.NewInt(int64(len(values)))
	circuitValues, err := circuits.PrepareCircuitArrayValues(values, valuesCount)
	if err != nil {
		return nil, err
	}
	valueHash, err := poseidon.SpongeHashX(circuitValues, 6)
	if err != nil {
		return nil, err
	}
	firstPart, err := poseidon.Hash([]*big.Int{
		schemaHash,
		big.NewInt(int64(slotIndex)),
		big.NewInt(int64(operator)),
		claimPathKey,
		claimPathNotExists,
		valueHash,
	})
	if err != nil {
		return nil, err
	}
	return poseidon.Hash([]*big.Int{
		firstPart,
		valArrSize,
		merklized,
		big.NewInt(0),
		big.NewInt(0),
		big.NewInt(0),
	})
}

// fieldValueFromVerifiablePresentation merklizes the presentation and
// returns the hashed value of credentialSubject.<key>.
func fieldValueFromVerifiablePresentation(ctx context.Context, verifiablePresentation json.RawMessage, schemaLoader ld.DocumentLoader, key string) (*big.Int, error) {
	if verifiablePresentation == nil {
		return nil, ErrSelectiveDisclosureMissingPresentation
	}

	mz, err := merklize.MerklizeJSONLD(ctx,
		bytes.NewBuffer(verifiablePresentation),
		merklize.WithDocumentLoader(schemaLoader))
	if err != nil {
		return nil, errors.Wrapf(ErrSelectiveDisclosureInvalidPresentation, "failed to merklize doc: %v", err)
	}

	merklizedPath, err := merklize.Options{DocumentLoader: schemaLoader}.
		NewPathFromDocument(verifiablePresentation,
			fmt.Sprintf("verifiableCredential.credentialSubject.%s", key))
	if err != nil {
		return nil, errors.Wrapf(ErrSelectiveDisclosureInvalidPresentation, "failed build path to '%s' key: %v", key, err)
	}

	proof, valueByPath, err := mz.Proof(ctx, merklizedPath)
	if err != nil {
		return nil, errors.Wrapf(ErrSelectiveDisclosureInvalidPresentation, "failed get raw value: %v", err)
	}
	if !proof.Existence {
		return nil, errors.Wrapf(ErrSelectiveDisclosureInvalidPresentation,
			"path '%v' doesn't exist in document", merklizedPath.Parts())
	}

	mvBig, err := valueByPath.MtEntry()
	if err != nil {
		return nil, errors.Wrapf(ErrSelectiveDisclosureInvalidPresentation, "failed to hash value: %v", err)
	}
	return mvBig, nil
}
