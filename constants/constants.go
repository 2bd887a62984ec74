package constants

import "time"

const (
	DefaultCacheMaxSize int64 = 10_000
	DefaultRPCTimeout         = 10 * time.Second
	DefaultSchemaTimeout      = 10 * time.Second

	// AcceptedProofGenerationDelay bounds the age of a proof timestamp.
	AcceptedProofGenerationDelay = time.Hour
	// AcceptedStateTransitionDelay bounds how long a replaced issuer
	// non-revocation state stays acceptable.
	AcceptedStateTransitionDelay = time.Hour
	// AuthAcceptedStateTransitionDelay bounds how long a replaced GIST root
	// stays acceptable.
	AuthAcceptedStateTransitionDelay = 5 * time.Minute
)

var (
	StateCacheOptions = CacheTTLOptions{
		NotReplacedTTL: AcceptedStateTransitionDelay / 2,
		ReplacedTTL:    AcceptedStateTransitionDelay,
	}

	GistRootCacheOptions = CacheTTLOptions{
		NotReplacedTTL: AuthAcceptedStateTransitionDelay / 2,
		ReplacedTTL:    AuthAcceptedStateTransitionDelay,
	}
)

// CacheTTLOptions splits expiration between latest entries, which may be
// replaced at any time, and replaced entries, which never change again.
type CacheTTLOptions struct {
	NotReplacedTTL time.Duration
	ReplacedTTL    time.Duration
}
