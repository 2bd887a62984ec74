package identifier

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mumbaiDID = "did:polygonid:polygon:mumbai:2qHSHBGWGJ68AosMKcLCTp8FYdVrtYE6MtNHhq8xpK"

func TestParseDID(t *testing.T) {
	did, err := ParseDID(mumbaiDID)
	require.NoError(t, err)

	assert.Equal(t, "polygonid", did.Method)
	assert.Equal(t, "polygon", did.Blockchain)
	assert.Equal(t, "mumbai", did.Network)
	assert.Equal(t, "2qHSHBGWGJ68AosMKcLCTp8FYdVrtYE6MtNHhq8xpK", did.ID.String())
	assert.Equal(t, mumbaiDID, did.String())
	assert.Equal(t, "polygon:mumbai", did.ChainKey())

	key, err := ChainKey(did.ID)
	require.NoError(t, err)
	assert.Equal(t, "polygon:mumbai", key)
}

func TestParseDIDErrors(t *testing.T) {
	tests := []struct {
		name string
		did  string
	}{
		{name: "not a did", did: "2qHSHBGWGJ68AosMKcLCTp8FYdVrtYE6MtNHhq8xpK"},
		{name: "short method specific id", did: "did:example:123"},
		{name: "network does not match type", did: "did:polygonid:polygon:main:2qHSHBGWGJ68AosMKcLCTp8FYdVrtYE6MtNHhq8xpK"},
		{name: "bad checksum", did: "did:polygonid:polygon:mumbai:2qHSHBGWGJ68AosMKcLCTp8FYdVrtYE6MtNHhq8xpL"},
		{name: "uppercase method", did: "did:POLYGONID:polygon:mumbai:2qHSHBGWGJ68AosMKcLCTp8FYdVrtYE6MtNHhq8xpK"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDID(tt.did)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDID))
		})
	}
}

func TestDIDFromID(t *testing.T) {
	id, err := FromStringCompat("2qHSHBGWGJ68AosMKcLCTp8FYdVrtYE6MtNHhq8xpK")
	require.NoError(t, err)

	did, err := DIDFromID(id)
	require.NoError(t, err)
	assert.Equal(t, mumbaiDID, did.String())
}
