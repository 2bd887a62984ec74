package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-iden3-verifier/cache"
	"github.com/iden3/go-iden3-verifier/constants"
	"github.com/iden3/go-iden3-verifier/identifier"
	"github.com/iden3/go-iden3-verifier/loaders"
	"github.com/iden3/go-iden3-verifier/pubsignals"
	"github.com/iden3/go-iden3-verifier/state"
	"github.com/piprate/json-gold/ld"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid verifier config")

// Chain is one State contract deployment.
type Chain struct {
	// ID is "<blockchain>:<network>", or "*" for the fallback resolver.
	ID       string `yaml:"id"`
	RPCURL   string `yaml:"rpc_url"`
	Contract string `yaml:"contract"`
}

// CacheConfig sizes the resolution caches. When RedisAddr is set the
// caches are shared through redis instead of held in memory.
type CacheConfig struct {
	MaxSize     int64  `yaml:"max_size"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// Config is the verifier configuration file.
type Config struct {
	VerifierDID   string        `yaml:"verifier_did"`
	KeysDir       string        `yaml:"keys_dir"`
	IPFSGateway   string        `yaml:"ipfs_gateway"`
	RPCTimeout    time.Duration `yaml:"rpc_timeout"`
	SchemaTimeout time.Duration `yaml:"schema_timeout"`

	AcceptedStateTransitionDelay time.Duration `yaml:"accepted_state_transition_delay"`
	AcceptedGistTransitionDelay  time.Duration `yaml:"accepted_gist_transition_delay"`
	AcceptedProofGenerationDelay time.Duration `yaml:"accepted_proof_generation_delay"`
	AllowReplacedIssuerState     bool          `yaml:"allow_replaced_issuer_state"`

	Cache  CacheConfig `yaml:"cache"`
	Chains []Chain     `yaml:"chains"`
}

// Load reads and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %q", path)
	}
	return Parse(data)
}

// Parse decodes YAML, fills defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Config
	if err := dec.Decode(&c); err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) setDefaults() {
	if c.RPCTimeout == 0 {
		c.RPCTimeout = constants.DefaultRPCTimeout
	}
	if c.SchemaTimeout == 0 {
		c.SchemaTimeout = constants.DefaultSchemaTimeout
	}
	if c.AcceptedStateTransitionDelay == 0 {
		c.AcceptedStateTransitionDelay = constants.AcceptedStateTransitionDelay
	}
	if c.AcceptedGistTransitionDelay == 0 {
		c.AcceptedGistTransitionDelay = constants.AuthAcceptedStateTransitionDelay
	}
	if c.AcceptedProofGenerationDelay == 0 {
		c.AcceptedProofGenerationDelay = constants.AcceptedProofGenerationDelay
	}
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = constants.DefaultCacheMaxSize
	}
	if c.Cache.RedisPrefix == "" {
		c.Cache.RedisPrefix = "iden3-verifier:"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var problems []string
	if c.KeysDir == "" {
		problems = append(problems, "keys_dir is required")
	}
	if c.VerifierDID != "" {
		if _, err := identifier.ParseDID(c.VerifierDID); err != nil {
			problems = append(problems, fmt.Sprintf("verifier_did: %v", err))
		}
	}
	for name, d := range map[string]time.Duration{
		"rpc_timeout":                     c.RPCTimeout,
		"schema_timeout":                  c.SchemaTimeout,
		"accepted_state_transition_delay": c.AcceptedStateTransitionDelay,
		"accepted_gist_transition_delay":  c.AcceptedGistTransitionDelay,
		"accepted_proof_generation_delay": c.AcceptedProofGenerationDelay,
	} {
		if d < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative", name))
		}
	}
	if c.Cache.MaxSize < 0 {
		problems = append(problems, "cache.max_size must not be negative")
	}

	if len(c.Chains) == 0 {
		problems = append(problems, "at least one chain is required")
	}
	seen := make(map[string]bool, len(c.Chains))
	for i, ch := range c.Chains {
		if ch.ID != pubsignals.DefaultResolverKey && len(strings.Split(ch.ID, ":")) != 2 {
			problems = append(problems, fmt.Sprintf("chains[%d].id %q is not <blockchain>:<network>", i, ch.ID))
		}
		if seen[ch.ID] {
			problems = append(problems, fmt.Sprintf("chains[%d].id %q is duplicated", i, ch.ID))
		}
		seen[ch.ID] = true
		if ch.RPCURL == "" {
			problems = append(problems, fmt.Sprintf("chains[%d].rpc_url is required", i))
		}
		if !common.IsHexAddress(ch.Contract) {
			problems = append(problems, fmt.Sprintf("chains[%d].contract %q is not an address", i, ch.Contract))
		}
	}

	if len(problems) > 0 {
		return errors.Wrap(ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Resolvers dials every configured chain. The returned function closes
// all of them.
func (c *Config) Resolvers() (map[string]pubsignals.StateResolver, func(), error) {
	resolvers := make(map[string]pubsignals.StateResolver, len(c.Chains))
	var opened []*state.ETHResolver
	closeAll := func() {
		for _, r := range opened {
			_ = r.Close()
		}
	}

	for _, ch := range c.Chains {
		r, err := state.NewETHResolver(ch.RPCURL, ch.Contract, &state.ResolverOptions{
			Timeout:           c.RPCTimeout,
			StateCacheOptions: c.cacheOptions(ch.ID, "state", constants.StateCacheOptions),
			RootCacheOptions:  c.cacheOptions(ch.ID, "gist", constants.GistRootCacheOptions),
		})
		if err != nil {
			closeAll()
			return nil, nil, errors.Wrapf(err, "chain %s", ch.ID)
		}
		opened = append(opened, r)
		resolvers[ch.ID] = r
	}
	return resolvers, closeAll, nil
}

func (c *Config) cacheOptions(chainID, kind string, ttl constants.CacheTTLOptions) *state.CacheOptions {
	opts := &state.CacheOptions{
		NotReplacedTTL: ttl.NotReplacedTTL,
		ReplacedTTL:    ttl.ReplacedTTL,
		MaxSize:        c.Cache.MaxSize,
	}
	if c.Cache.RedisAddr != "" {
		prefix := fmt.Sprintf("%s%s:%s:", c.Cache.RedisPrefix, chainID, kind)
		opts.Cache = cache.NewRedisCacheFromAddr[state.ResolvedState](c.Cache.RedisAddr, prefix, ttl.ReplacedTTL)
	}
	return opts
}

// KeyLoader reads verification keys from KeysDir and keeps them in memory.
func (c *Config) KeyLoader() loaders.VerificationKeyLoader {
	return loaders.NewCachedKeyLoader(loaders.FSKeyLoader{Dir: c.KeysDir})
}

// DocumentLoader returns the JSON-LD loader bounded by SchemaTimeout.
func (c *Config) DocumentLoader() ld.DocumentLoader {
	return loaders.NewDocumentLoader(c.IPFSGateway, c.SchemaTimeout)
}

// VerifyOpts are the options of atomic query proofs.
func (c *Config) VerifyOpts() []pubsignals.VerifyOpt {
	opts := []pubsignals.VerifyOpt{
		pubsignals.WithAcceptedStateTransitionDelay(c.AcceptedStateTransitionDelay),
		pubsignals.WithAcceptedProofGenerationDelay(c.AcceptedProofGenerationDelay),
		pubsignals.WithIssuerStateLatest(!c.AllowReplacedIssuerState),
	}
	if did, err := identifier.ParseDID(c.VerifierDID); err == nil {
		opts = append(opts, pubsignals.WithVerifierDID(did))
	}
	return opts
}

// AuthVerifyOpts are the options of the authV2 proof of a JWZ token.
func (c *Config) AuthVerifyOpts() []pubsignals.VerifyOpt {
	return []pubsignals.VerifyOpt{
		pubsignals.WithAcceptedStateTransitionDelay(c.AcceptedGistTransitionDelay),
	}
}
