package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSender(t *testing.T) {
	t.Run("supported did", func(t *testing.T) {
		s := ParseSender(mumbaiDID)
		require.True(t, s.Supported())
		assert.Equal(t, "2qHSHBGWGJ68AosMKcLCTp8FYdVrtYE6MtNHhq8xpK", s.ID().String())

		key, ok := s.ChainKey()
		require.True(t, ok)
		assert.Equal(t, "polygon:mumbai", key)
		assert.Equal(t, mumbaiDID, s.String())
	})

	t.Run("unsupported method", func(t *testing.T) {
		s := ParseSender("did:example:123")
		assert.False(t, s.Supported())
		assert.Equal(t, FromUnsupportedSender("did:example:123"), s.ID())

		_, ok := s.ChainKey()
		assert.False(t, ok)
	})

	t.Run("arbitrary string", func(t *testing.T) {
		s := ParseSender("")
		assert.False(t, s.Supported())
		assert.Equal(t, TypeUnsupported, s.ID().Type())
	})
}
