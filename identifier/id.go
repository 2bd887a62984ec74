package identifier

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcutil/base58"
	core "github.com/iden3/go-iden3-core/v2"
	"github.com/pkg/errors"
)

const (
	typeLen     = 2
	genesisLen  = 27
	checksumLen = 2

	// IDLength is the byte length of an identifier.
	IDLength = typeLen + genesisLen + checksumLen
)

var (
	// ErrMalformedIdentifier is returned when identifier bytes have the wrong length.
	ErrMalformedIdentifier = errors.New("malformed identifier")
	// ErrZeroIdentifier is returned for the all-zero identifier.
	ErrZeroIdentifier = errors.New("identifier is empty")
	// ErrChecksumMismatch is returned when the trailing checksum is not valid.
	ErrChecksumMismatch = errors.New("identifier checksum mismatch")
)

// TypeUnsupported is the type prefix of identifiers derived from senders
// whose DID method has no identifier encoding.
var TypeUnsupported = [2]byte{0xff, 0xff}

// ID is a 31 byte identifier: type (2) | genesis (27) | checksum (2).
type ID [IDLength]byte

// New builds an identifier from type and genesis and computes its checksum.
func New(typ [2]byte, genesis [27]byte) ID {
	checksum := CalculateChecksum(typ, genesis)

	var id ID
	copy(id[:typeLen], typ[:])
	copy(id[typeLen:typeLen+genesisLen], genesis[:])
	copy(id[typeLen+genesisLen:], checksum[:])
	return id
}

// Decompose splits identifier bytes into type, genesis and checksum.
func Decompose(b []byte) (typ [2]byte, genesis [27]byte, checksum [2]byte, err error) {
	if len(b) != IDLength {
		return typ, genesis, checksum, errors.Wrapf(ErrMalformedIdentifier,
			"expected %d bytes, got %d", IDLength, len(b))
	}
	copy(typ[:], b[:typeLen])
	copy(genesis[:], b[typeLen:typeLen+genesisLen])
	copy(checksum[:], b[typeLen+genesisLen:])
	return typ, genesis, checksum, nil
}

// CalculateChecksum sums every byte of type and genesis into a 16 bit
// accumulator and returns it big-endian.
func CalculateChecksum(typ [2]byte, genesis [27]byte) [2]byte {
	var s uint16
	for _, b := range typ {
		s += uint16(b)
	}
	for _, b := range genesis {
		s += uint16(b)
	}
	return [2]byte{byte(s >> 8), byte(s & 0xff)}
}

// FromBytes parses and validates identifier bytes. The checksum must be in
// the canonical {sum>>8, sum&0xff} order.
func FromBytes(b []byte) (ID, error) {
	return fromBytes(b, false)
}

// FromBytesCompat is FromBytes that also accepts the checksum with its two
// bytes swapped, as carried by identifiers minted by go-iden3-core and
// deployed identity contracts. The bytes are kept as given.
func FromBytesCompat(b []byte) (ID, error) {
	return fromBytes(b, true)
}

func fromBytes(b []byte, swapped bool) (ID, error) {
	typ, genesis, checksum, err := Decompose(b)
	if err != nil {
		return ID{}, err
	}
	if bytes.Equal(b, make([]byte, IDLength)) {
		return ID{}, ErrZeroIdentifier
	}
	c := CalculateChecksum(typ, genesis)
	if checksum != c && !(swapped && checksum == [2]byte{c[1], c[0]}) {
		return ID{}, errors.Wrapf(ErrChecksumMismatch, "identifier %x", b)
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

// FromString parses the base58 form of an identifier.
func FromString(s string) (ID, error) {
	return fromString(s, false)
}

// FromStringCompat parses the base58 form, accepting a swapped checksum.
func FromStringCompat(s string) (ID, error) {
	return fromString(s, true)
}

func fromString(s string, swapped bool) (ID, error) {
	b := base58.Decode(s)
	if len(b) == 0 && s != "" {
		return ID{}, errors.Wrapf(ErrMalformedIdentifier, "invalid base58 string %q", s)
	}
	return fromBytes(b, swapped)
}

// FromBigInt parses the little-endian integer form of an identifier.
func FromBigInt(i *big.Int) (ID, error) {
	return fromBigInt(i, false)
}

// FromBigIntCompat parses the integer form, accepting a swapped checksum.
// Identifiers in circuit public signals are decoded with it.
func FromBigIntCompat(i *big.Int) (ID, error) {
	return fromBigInt(i, true)
}

func fromBigInt(i *big.Int, swapped bool) (ID, error) {
	if i == nil || i.Sign() < 0 {
		return ID{}, errors.Wrap(ErrMalformedIdentifier, "identifier integer must be non-negative")
	}
	be := i.Bytes()
	if len(be) > IDLength {
		return ID{}, errors.Wrapf(ErrMalformedIdentifier,
			"identifier integer is %d bytes wide", len(be))
	}
	b := make([]byte, IDLength)
	for j := range be {
		b[j] = be[len(be)-1-j]
	}
	return fromBytes(b, swapped)
}

// String returns the base58 form.
func (id ID) String() string {
	return base58.Encode(id[:])
}

// Bytes returns a copy of the identifier bytes.
func (id ID) Bytes() []byte {
	b := make([]byte, IDLength)
	copy(b, id[:])
	return b
}

// BigInt returns the little-endian integer form.
func (id ID) BigInt() *big.Int {
	be := make([]byte, IDLength)
	for i := range id {
		be[IDLength-1-i] = id[i]
	}
	return new(big.Int).SetBytes(be)
}

// Type returns the two type bytes.
func (id ID) Type() [2]byte {
	return [2]byte{id[0], id[1]}
}

// Genesis returns the genesis part.
func (id ID) Genesis() [27]byte {
	var g [27]byte
	copy(g[:], id[typeLen:typeLen+genesisLen])
	return g
}

// GenesisFromState derives the genesis identifier of the given type from an
// identity state. Genesis bytes are the last 27 bytes of the 32 byte
// little-endian state encoding.
func GenesisFromState(typ [2]byte, state *big.Int) (ID, error) {
	if state == nil || state.Sign() < 0 || state.BitLen() > 256 {
		return ID{}, errors.New("state is not a 32 byte field element")
	}
	be := state.FillBytes(make([]byte, 32))
	le := make([]byte, 32)
	for i := range be {
		le[i] = be[31-i]
	}
	var genesis [27]byte
	copy(genesis[:], le[32-genesisLen:])
	return New(typ, genesis), nil
}

// Matches reports whether two identifiers share type and genesis. Unlike
// ==, it ignores the byte order of the checksum, so a canonical identifier
// matches its compat-decoded form.
func (id ID) Matches(other ID) bool {
	return id.Type() == other.Type() && id.Genesis() == other.Genesis()
}

// IsGenesis reports whether state is the genesis state of id.
func IsGenesis(id ID, state *big.Int) bool {
	fromState, err := GenesisFromState(id.Type(), state)
	if err != nil {
		return false
	}
	return fromState.Matches(id)
}

// FromUnsupportedSender derives a synthetic identifier from a sender string
// that has no identifier encoding.
func FromUnsupportedSender(raw string) ID {
	h := sha256.Sum256([]byte(raw))
	var genesis [27]byte
	copy(genesis[:], h[len(h)-genesisLen:])
	return New(TypeUnsupported, genesis)
}

// ChainKey returns "<blockchain>:<network>" encoded in the identifier type.
func ChainKey(id ID) (string, error) {
	blockchain, err := core.BlockchainFromID(core.ID(id))
	if err != nil {
		return "", errors.Wrapf(err, "blockchain of identifier %s", id)
	}
	network, err := core.NetworkIDFromID(core.ID(id))
	if err != nil {
		return "", errors.Wrapf(err, "network of identifier %s", id)
	}
	return fmt.Sprintf("%s:%s", blockchain, network), nil
}
