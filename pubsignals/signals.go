package pubsignals

import (
	"math/big"
	"sort"

	"github.com/iden3/go-circuits/v2"
	"github.com/iden3/go-iden3-verifier/identifier"
	"github.com/pkg/errors"
)

// Circuits without a constant in go-circuits.
const (
	LinkedMultiQuery3CircuitID circuits.CircuitID = "linkedMultiQuery3-beta.1"
	LinkedMultiQuery5CircuitID circuits.CircuitID = "linkedMultiQuery5-beta.1"
)

// valuesCount is the size of the value array of atomic query circuits.
const valuesCount = 64

// Constructor returns a fresh verifier for one proof.
type Constructor func() Verifier

// Registry maps circuit ids to verifier constructors. It is not modified
// after construction and is safe for concurrent use.
type Registry struct {
	constructors map[circuits.CircuitID]Constructor
}

// NewRegistry returns a registry of every supported circuit.
func NewRegistry() *Registry {
	return &Registry{constructors: map[circuits.CircuitID]Constructor{
		circuits.AuthCircuitID:               func() Verifier { return &Auth{} },
		circuits.AuthV2CircuitID:             func() Verifier { return &AuthV2{} },
		circuits.AtomicQueryMTPCircuitID:     func() Verifier { return &AtomicQueryMTP{} },
		circuits.AtomicQuerySigCircuitID:     func() Verifier { return &AtomicQuerySig{} },
		circuits.AtomicQueryMTPV2CircuitID:   func() Verifier { return &AtomicQueryMTPV2{} },
		circuits.AtomicQuerySigV2CircuitID:   func() Verifier { return &AtomicQuerySigV2{} },
		circuits.AtomicQueryV3CircuitID:      func() Verifier { return &AtomicQueryV3{} },
		LinkedMultiQuery3CircuitID:           func() Verifier { return &LinkedMultiQuery{QueryLength: 3} },
		LinkedMultiQuery5CircuitID:           func() Verifier { return &LinkedMultiQuery{QueryLength: 5} },
		circuits.LinkedMultiQuery10CircuitID: func() Verifier { return &LinkedMultiQuery{QueryLength: 10} },
	}}
}

// With returns a copy of the registry with id bound to c.
func (r *Registry) With(id circuits.CircuitID, c Constructor) *Registry {
	out := &Registry{constructors: make(map[circuits.CircuitID]Constructor, len(r.constructors)+1)}
	for k, v := range r.constructors {
		out.constructors[k] = v
	}
	out.constructors[id] = c
	return out
}

// GetVerifier return specific public signals verifier
func (r *Registry) GetVerifier(id circuits.CircuitID) (Verifier, error) {
	c, ok := r.constructors[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedCircuit, "%s", id)
	}
	return c(), nil
}

// Circuits lists registered circuit ids in lexical order.
func (r *Registry) Circuits() []circuits.CircuitID {
	out := make([]circuits.CircuitID, 0, len(r.constructors))
	for id := range r.constructors {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// signalReader decodes positional signals. The first failure sticks and
// later reads return zero values.
type signalReader struct {
	signals []string
	pos     int
	err     error
}

func newSignalReader(circuitID circuits.CircuitID, signals []string, expected int) (*signalReader, error) {
	if len(signals) != expected {
		return nil, errors.Wrapf(ErrSignalCountMismatch,
			"%s expects %d signals, got %d", circuitID, expected, len(signals))
	}
	return &signalReader{signals: signals}, nil
}

func (r *signalReader) bigInt() *big.Int {
	if r.err != nil {
		return new(big.Int)
	}
	i, ok := new(big.Int).SetString(r.signals[r.pos], 10)
	if !ok || i.Sign() < 0 {
		r.err = errors.Wrapf(ErrMalformedSignal, "signal %d: %q", r.pos, r.signals[r.pos])
		return new(big.Int)
	}
	r.pos++
	return i
}

func (r *signalReader) int() int {
	i := r.bigInt()
	if r.err == nil && !i.IsInt64() {
		r.err = errors.Wrapf(ErrMalformedSignal, "signal %d overflows int", r.pos-1)
		return 0
	}
	return int(i.Int64())
}

func (r *signalReader) int64() int64 {
	return int64(r.int())
}

func (r *signalReader) id() identifier.ID {
	i := r.bigInt()
	if r.err != nil {
		return identifier.ID{}
	}
	id, err := identifier.FromBigIntCompat(i)
	if err != nil {
		r.err = errors.Wrapf(err, "signal %d", r.pos-1)
	}
	return id
}

func (r *signalReader) values(n int) []*big.Int {
	out := make([]*big.Int, n)
	for i := range out {
		out[i] = r.bigInt()
	}
	return out
}
