package identifier

import (
	"fmt"
	"regexp"
	"strings"

	core "github.com/iden3/go-iden3-core/v2"
	"github.com/pkg/errors"
)

// ErrInvalidDID is returned when a string is not a DID with an identifier.
var ErrInvalidDID = errors.New("invalid did")

// did:<method>[:<blockchain>:<network>]:<base58 id>
var didRegex = regexp.MustCompile(
	`^did:([a-z0-9]+):(?:([a-z0-9]+):([a-z0-9]+):)?([1-9A-HJ-NP-Za-km-z]{40,44})$`)

// DID wraps an identifier with its method and optional chain qualifiers.
type DID struct {
	Method     string
	Blockchain string
	Network    string
	ID         ID
}

// String returns the canonical did string.
func (d DID) String() string {
	parts := []string{"did", d.Method}
	if d.Blockchain != "" {
		parts = append(parts, d.Blockchain, d.Network)
	}
	parts = append(parts, d.ID.String())
	return strings.Join(parts, ":")
}

// ChainKey returns "<blockchain>:<network>" of the qualifiers.
func (d DID) ChainKey() string {
	return fmt.Sprintf("%s:%s", d.Blockchain, d.Network)
}

// ParseDID parses a did whose method-specific part is an identifier.
// The method, blockchain and network qualifiers must agree with the
// identifier type.
func ParseDID(s string) (*DID, error) {
	m := didRegex.FindStringSubmatch(s)
	if m == nil {
		return nil, errors.Wrapf(ErrInvalidDID, "%q", s)
	}
	id, err := FromStringCompat(m[4])
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidDID, "%q: %v", s, err)
	}
	did := &DID{Method: m[1], Blockchain: m[2], Network: m[3], ID: id}

	fromID, err := core.ParseDIDFromID(core.ID(id))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidDID, "%q: %v", s, err)
	}
	if fromID.String() != did.String() {
		return nil, errors.Wrapf(ErrInvalidDID,
			"%q: identifier type encodes %s", s, fromID.String())
	}
	return did, nil
}

// DIDFromID builds the did of an identifier from its type.
func DIDFromID(id ID) (*DID, error) {
	d, err := core.ParseDIDFromID(core.ID(id))
	if err != nil {
		return nil, err
	}
	return ParseDID(d.String())
}
