package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iden3/go-circuits/v2"
	"github.com/iden3/go-iden3-verifier/constants"
	"github.com/iden3/go-iden3-verifier/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
verifier_did: did:polygonid:polygon:mumbai:2qHSHBGWGJ68AosMKcLCTp8FYdVrtYE6MtNHhq8xpK
keys_dir: ./keys
ipfs_gateway: https://ipfs.io
rpc_timeout: 3s
accepted_state_transition_delay: 30m
accepted_proof_generation_delay: 2h
allow_replaced_issuer_state: true
cache:
  max_size: 500
chains:
  - id: polygon:amoy
    rpc_url: http://127.0.0.1:8545
    contract: "0x1a4cC30f2aA0377b0c3bc9848766D90cb4404124"
  - id: polygon:mumbai
    rpc_url: http://127.0.0.1:8546
    contract: "0x134B1BE34911E39A8397ec6289782989729807a4"
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "./keys", c.KeysDir)
	assert.Equal(t, 3*time.Second, c.RPCTimeout)
	assert.Equal(t, constants.DefaultSchemaTimeout, c.SchemaTimeout)
	assert.Equal(t, 30*time.Minute, c.AcceptedStateTransitionDelay)
	assert.Equal(t, constants.AuthAcceptedStateTransitionDelay, c.AcceptedGistTransitionDelay)
	assert.Equal(t, 2*time.Hour, c.AcceptedProofGenerationDelay)
	assert.True(t, c.AllowReplacedIssuerState)
	assert.Equal(t, int64(500), c.Cache.MaxSize)
	require.Len(t, c.Chains, 2)
	assert.Equal(t, "polygon:mumbai", c.Chains[1].ID)

	assert.Len(t, c.VerifyOpts(), 4)
	assert.Len(t, c.AuthVerifyOpts(), 1)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "keys_dir: k\nunknown: 1\n"},
		{"no chains", "keys_dir: k\n"},
		{"no keys dir", "chains:\n  - {id: polygon:amoy, rpc_url: http://x, contract: \"0x1a4cC30f2aA0377b0c3bc9848766D90cb4404124\"}\n"},
		{"bad chain id", "keys_dir: k\nchains:\n  - {id: amoy, rpc_url: http://x, contract: \"0x1a4cC30f2aA0377b0c3bc9848766D90cb4404124\"}\n"},
		{"bad contract", "keys_dir: k\nchains:\n  - {id: polygon:amoy, rpc_url: http://x, contract: \"0x12\"}\n"},
		{"duplicate chain", "keys_dir: k\nchains:\n  - {id: polygon:amoy, rpc_url: http://x, contract: \"0x1a4cC30f2aA0377b0c3bc9848766D90cb4404124\"}\n  - {id: polygon:amoy, rpc_url: http://y, contract: \"0x1a4cC30f2aA0377b0c3bc9848766D90cb4404124\"}\n"},
		{"bad verifier did", "keys_dir: k\nverifier_did: did:polygonid:nope\nchains:\n  - {id: polygon:amoy, rpc_url: http://x, contract: \"0x1a4cC30f2aA0377b0c3bc9848766D90cb4404124\"}\n"},
		{"negative delay", "keys_dir: k\naccepted_proof_generation_delay: -1h\nchains:\n  - {id: polygon:amoy, rpc_url: http://x, contract: \"0x1a4cC30f2aA0377b0c3bc9848766D90cb4404124\"}\n"},
		{"bad duration", "keys_dir: k\nrpc_timeout: soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verifier.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://ipfs.io", c.IPFSGateway)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestResolvers(t *testing.T) {
	c, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	resolvers, closeAll, err := c.Resolvers()
	require.NoError(t, err)
	defer closeAll()

	require.Len(t, resolvers, 2)
	r, ok := resolvers["polygon:amoy"].(*state.ETHResolver)
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:8545", r.RPCUrl)
	assert.True(t, strings.EqualFold("0x1a4cC30f2aA0377b0c3bc9848766D90cb4404124", r.ContractAddress.Hex()))
}

func TestKeyLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "authV2.json"), []byte(`{"protocol":"groth16"}`), 0o600))

	c := &Config{KeysDir: dir}
	key, err := c.KeyLoader().Load(circuits.AuthV2CircuitID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"protocol":"groth16"}`, string(key))
}
