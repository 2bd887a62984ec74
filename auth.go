package auth

import (
	"context"
	"encoding/json"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/iden3/go-circuits/v2"
	"github.com/iden3/go-iden3-verifier/config"
	"github.com/iden3/go-iden3-verifier/constants"
	"github.com/iden3/go-iden3-verifier/identifier"
	"github.com/iden3/go-iden3-verifier/loaders"
	"github.com/iden3/go-iden3-verifier/proofs"
	"github.com/iden3/go-iden3-verifier/pubsignals"
	"github.com/iden3/go-iden3-verifier/state"
	"github.com/iden3/go-jwz/v2"
	"github.com/iden3/iden3comm/v2/protocol"
	"github.com/piprate/json-gold/ld"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrCorrelationMismatch is returned when a response does not answer the request.
	ErrCorrelationMismatch = errors.New("response does not correspond to request")
	// ErrGroupQueryMismatch is returned when requests of one group ask for different credentials.
	ErrGroupQueryMismatch = errors.New("requests of the group have different queries")
	// ErrMissingProof is returned when a required request has no proof in the response.
	ErrMissingProof = errors.New("proof for request is not presented")
	// ErrDuplicateProof is returned when a response carries two proofs for one request.
	ErrDuplicateProof = errors.New("proof for request is presented more than once")
	// ErrCircuitMismatch is returned when a proof was generated by another circuit than requested.
	ErrCircuitMismatch = errors.New("proof has different circuit id than requested")
	// ErrInvalidProof is returned when the zero-knowledge proof check fails.
	ErrInvalidProof = errors.New("zero-knowledge proof is not valid")
	// ErrLinkIDMismatch is returned when proofs of one group are not linked to the same credential.
	ErrLinkIDMismatch = errors.New("link id mismatch")
)

// Verifier is a struct for auth instance
type Verifier struct {
	verificationKeyLoader loaders.VerificationKeyLoader
	documentLoader        ld.DocumentLoader
	stateResolvers        map[string]pubsignals.StateResolver
	proofVerifier         proofs.ProofVerifier
	registry              *pubsignals.Registry
	logger                *zap.Logger
	metrics               *metrics
	parallelism           int
	verifyOpts            []pubsignals.VerifyOpt
	authVerifyOpts        []pubsignals.VerifyOpt
}

// VerifierOption is a function to set options for Verifier instance
type VerifierOption func(opts *verifierOpts)

type verifierOpts struct {
	docLoader     ld.DocumentLoader
	proofVerifier proofs.ProofVerifier
	registry      *pubsignals.Registry
	logger        *zap.Logger
	registerer    prometheus.Registerer
	parallelism   int
	verifyOpts    []pubsignals.VerifyOpt
	authOpts      []pubsignals.VerifyOpt
}

// WithDocumentLoader sets the document loader for Verifier instance
func WithDocumentLoader(docLoader ld.DocumentLoader) VerifierOption {
	return func(opts *verifierOpts) {
		opts.docLoader = docLoader
	}
}

// WithProofVerifier replaces the groth16 proof check.
func WithProofVerifier(pv proofs.ProofVerifier) VerifierOption {
	return func(opts *verifierOpts) {
		opts.proofVerifier = pv
	}
}

// WithRegistry sets the circuits the verifier accepts.
func WithRegistry(r *pubsignals.Registry) VerifierOption {
	return func(opts *verifierOpts) {
		opts.registry = r
	}
}

// WithLogger sets the logger. Nothing is logged by default.
func WithLogger(l *zap.Logger) VerifierOption {
	return func(opts *verifierOpts) {
		opts.logger = l
	}
}

// WithMetrics registers verifier metrics on r.
func WithMetrics(r prometheus.Registerer) VerifierOption {
	return func(opts *verifierOpts) {
		opts.registerer = r
	}
}

// WithParallelism bounds the number of proofs of one response verified at
// the same time. Zero or less means no limit.
func WithParallelism(n int) VerifierOption {
	return func(opts *verifierOpts) {
		opts.parallelism = n
	}
}

// WithVerifyOpts sets options applied to every proof before the options
// of a call.
func WithVerifyOpts(vo ...pubsignals.VerifyOpt) VerifierOption {
	return func(opts *verifierOpts) {
		opts.verifyOpts = vo
	}
}

// WithAuthVerifyOpts sets options of the authentication proof of a JWZ
// token. They are applied after the options of a call.
func WithAuthVerifyOpts(vo ...pubsignals.VerifyOpt) VerifierOption {
	return func(opts *verifierOpts) {
		opts.authOpts = vo
	}
}

// NewVerifier returns setup instance of auth library
func NewVerifier(
	keyLoader loaders.VerificationKeyLoader,
	resolvers map[string]pubsignals.StateResolver,
	opts ...VerifierOption,
) (*Verifier, error) {
	if keyLoader == nil {
		return nil, errors.New("verification key loader is required")
	}
	if len(resolvers) == 0 {
		return nil, errors.New("at least one state resolver is required")
	}

	settings := verifierOpts{}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.docLoader == nil {
		settings.docLoader = loaders.NewDocumentLoader("", constants.DefaultSchemaTimeout)
	}
	if settings.proofVerifier == nil {
		settings.proofVerifier = proofs.RapidsnarkVerifier{}
	}
	if settings.registry == nil {
		settings.registry = pubsignals.NewRegistry()
	}
	if settings.logger == nil {
		settings.logger = zap.NewNop()
	}

	m, err := newMetrics(settings.registerer)
	if err != nil {
		return nil, err
	}

	return &Verifier{
		verificationKeyLoader: keyLoader,
		documentLoader:        settings.docLoader,
		stateResolvers:        resolvers,
		proofVerifier:         settings.proofVerifier,
		registry:              settings.registry,
		logger:                settings.logger,
		metrics:               m,
		parallelism:           settings.parallelism,
		verifyOpts:            settings.verifyOpts,
		authVerifyOpts:        settings.authOpts,
	}, nil
}

// NewVerifierFromConfig builds a verifier for the chains, keys and schemas
// of cfg. The returned function closes the ledger clients.
func NewVerifierFromConfig(cfg *config.Config, opts ...VerifierOption) (*Verifier, func(), error) {
	resolvers, closeResolvers, err := cfg.Resolvers()
	if err != nil {
		return nil, nil, err
	}
	opts = append([]VerifierOption{
		WithDocumentLoader(cfg.DocumentLoader()),
		WithVerifyOpts(cfg.VerifyOpts()...),
		WithAuthVerifyOpts(cfg.AuthVerifyOpts()...),
	}, opts...)
	v, err := NewVerifier(cfg.KeyLoader(), resolvers, opts...)
	if err != nil {
		closeResolvers()
		return nil, nil, err
	}
	return v, closeResolvers, nil
}

// VerificationResult describes one verified proof of a response.
type VerificationResult struct {
	RequestID      uint32
	CircuitID      circuits.CircuitID
	UserID         identifier.ID
	LinkID         *big.Int
	Nullifier      *big.Int
	OperatorOutput *big.Int
}

// VerifyAuthResponse performs verification of auth response based on auth request
func (v *Verifier) VerifyAuthResponse(
	ctx context.Context,
	response protocol.AuthorizationResponseMessage,
	request protocol.AuthorizationRequestMessage,
	opts ...pubsignals.VerifyOpt,
) error {
	_, err := v.VerifyAuthResponseWithResult(ctx, response, request, opts...)
	return err
}

// VerifyAuthResponseWithResult verifies the response like VerifyAuthResponse
// and returns the values exposed by every verified proof, in request order.
func (v *Verifier) VerifyAuthResponseWithResult(
	ctx context.Context,
	response protocol.AuthorizationResponseMessage,
	request protocol.AuthorizationRequestMessage,
	opts ...pubsignals.VerifyOpt,
) (results []VerificationResult, err error) {
	start := time.Now()
	defer func() {
		v.metrics.observeAuthorization(time.Since(start), err)
		if err != nil {
			v.logger.Warn("authorization response rejected",
				zap.String("thread_id", request.ThreadID),
				zap.String("from", response.From),
				zap.Error(err))
		}
	}()

	if err = checkCorrelation(response, request); err != nil {
		return nil, err
	}

	queries, err := parseQueries(request.Body.Scope)
	if err != nil {
		return nil, err
	}
	if err = checkGroups(request.Body.Scope, queries); err != nil {
		return nil, err
	}

	tasks, err := matchProofs(request.Body.Scope, response.Body.Scope, queries)
	if err != nil {
		return nil, err
	}

	opts = append(append([]pubsignals.VerifyOpt{}, v.verifyOpts...), opts...)
	sender := identifier.ParseSender(response.From)
	links := newLinkAccumulator()
	results = make([]VerificationResult, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	if v.parallelism > 0 {
		g.SetLimit(v.parallelism)
	}
	for i := range tasks {
		task := tasks[i]
		g.Go(func() error {
			res, err := v.verifyProof(gctx, sender, task, opts)
			if err != nil {
				return err
			}
			results[i] = res
			if task.query.GroupID != 0 && res.LinkID != nil {
				links.add(task.query.GroupID, task.request.ID, res.LinkID)
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	if err = links.check(); err != nil {
		return nil, err
	}
	return results, nil
}

type proofTask struct {
	request  protocol.ZeroKnowledgeProofRequest
	response protocol.ZeroKnowledgeProofResponse
	query    pubsignals.Query
}

func (v *Verifier) verifyProof(
	ctx context.Context,
	sender identifier.Sender,
	task proofTask,
	opts []pubsignals.VerifyOpt,
) (res VerificationResult, err error) {
	circuitID := circuits.CircuitID(task.request.CircuitID)
	log := v.logger.With(
		zap.Uint32("request_id", task.request.ID),
		zap.String("circuit_id", string(circuitID)))
	defer func() {
		v.metrics.observeProof(circuitID, err)
	}()

	if err = v.verifyZKP(ctx, circuitID, task.response); err != nil {
		return res, errors.WithMessagef(err, "request id %d", task.request.ID)
	}
	log.Debug("proof is valid")

	cv, err := v.registry.GetVerifier(circuitID)
	if err != nil {
		return res, err
	}
	if err = cv.PubSignalsUnmarshal(task.response.PubSignals); err != nil {
		return res, err
	}

	challenge := new(big.Int).SetUint64(uint64(task.request.ID))
	if err = cv.VerifyIDOwnership(sender, challenge); err != nil {
		return res, err
	}
	log.Debug("ownership verified", zap.String("sender", sender.String()))

	out, err := cv.VerifyQuery(ctx, task.query, v.documentLoader,
		task.response.VerifiablePresentation, task.request.Params, opts...)
	if err != nil {
		return res, err
	}
	log.Debug("query verified")

	if err = cv.VerifyStates(ctx, v.stateResolvers, opts...); err != nil {
		return res, err
	}
	log.Debug("states verified")

	return VerificationResult{
		RequestID:      task.request.ID,
		CircuitID:      circuitID,
		UserID:         sender.ID(),
		LinkID:         out.LinkID,
		Nullifier:      out.Nullifier,
		OperatorOutput: out.OperatorOutput,
	}, nil
}

func (v *Verifier) verifyZKP(ctx context.Context, circuitID circuits.CircuitID, resp protocol.ZeroKnowledgeProofResponse) error {
	key, err := v.verificationKeyLoader.Load(circuitID)
	if err != nil {
		return errors.WithMessagef(err, "verification key of circuit %s", circuitID)
	}
	if err = v.proofVerifier.Verify(ctx, resp.ZKProof, key); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(ErrInvalidProof, "circuit %s: %v", circuitID, err)
	}
	return nil
}

// VerifyJWZ performs verification of jwz token
func (v *Verifier) VerifyJWZ(ctx context.Context, token string, opts ...pubsignals.VerifyOpt) (*jwz.Token, error) {
	t, _, err := v.verifyJWZ(ctx, token, opts)
	return t, err
}

func (v *Verifier) verifyJWZ(
	ctx context.Context,
	token string,
	opts []pubsignals.VerifyOpt,
) (*jwz.Token, pubsignals.Verifier, error) {
	t, err := jwz.Parse(token)
	if err != nil {
		return nil, nil, err
	}
	circuitID := circuits.CircuitID(t.CircuitID)
	verificationKey, err := v.verificationKeyLoader.Load(circuitID)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "verification key of circuit %s", circuitID)
	}
	isValid, err := t.Verify(verificationKey)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrInvalidProof, "jwz: %v", err)
	}
	if !isValid {
		return nil, nil, errors.Wrap(ErrInvalidProof, "jwz")
	}

	cv, err := v.registry.GetVerifier(circuitID)
	if err != nil {
		return nil, nil, err
	}
	if err = cv.PubSignalsUnmarshal(t.ZkProof.PubSignals); err != nil {
		return nil, nil, err
	}
	opts = append(append([]pubsignals.VerifyOpt{}, opts...), v.authVerifyOpts...)
	if err = cv.VerifyStates(ctx, v.stateResolvers, opts...); err != nil {
		return nil, nil, err
	}
	return t, cv, nil
}

// FullVerify performs verification of jwz token and auth request
func (v *Verifier) FullVerify(
	ctx context.Context,
	token string,
	request protocol.AuthorizationRequestMessage,
	opts ...pubsignals.VerifyOpt,
) (*protocol.AuthorizationResponseMessage, error) {
	t, cv, err := v.verifyJWZ(ctx, token, opts)
	if err != nil {
		return nil, err
	}

	var authMsgResponse protocol.AuthorizationResponseMessage
	if err = json.Unmarshal(t.GetPayload(), &authMsgResponse); err != nil {
		return nil, errors.Wrap(err, "jwz payload is not an authorization response")
	}

	// the challenge is bound to the payload by the token proof, only the
	// user needs to be matched against the sender
	if err = verifyTokenOwner(cv, identifier.ParseSender(authMsgResponse.From)); err != nil {
		return nil, err
	}

	if err = v.VerifyAuthResponse(ctx, authMsgResponse, request, opts...); err != nil {
		return nil, err
	}
	return &authMsgResponse, nil
}

func verifyTokenOwner(cv pubsignals.Verifier, sender identifier.Sender) error {
	switch c := cv.(type) {
	case *pubsignals.AuthV2:
		return c.VerifyIDOwnership(sender, c.Challenge)
	case *pubsignals.Auth:
		return c.VerifyIDOwnership(sender, c.Challenge)
	default:
		return errors.Wrapf(pubsignals.ErrUnsupportedCircuit, "%T is not an authentication circuit", cv)
	}
}

// IsRetryable reports whether err was caused by a ledger or document
// fetch that timed out or failed in transport. Every other error is final.
func IsRetryable(err error) bool {
	return errors.Is(err, state.ErrResolutionTimeout) || errors.Is(err, state.ErrLedgerUnavailable)
}

func checkCorrelation(response protocol.AuthorizationResponseMessage, request protocol.AuthorizationRequestMessage) error {
	if request.Body.Message != response.Body.Message {
		return errors.Wrapf(ErrCorrelationMismatch,
			"message mismatch, expected %q, given %q", request.Body.Message, response.Body.Message)
	}
	if request.From != response.To {
		return errors.Wrapf(ErrCorrelationMismatch,
			"sender of the request is not a target of response - expected %s, given %s",
			request.From, response.To)
	}
	return nil
}

func parseQueries(scope []protocol.ZeroKnowledgeProofRequest) ([]pubsignals.Query, error) {
	queries := make([]pubsignals.Query, len(scope))
	for i, req := range scope {
		q, err := pubsignals.QueryFromMap(req.Query)
		if err != nil {
			return nil, errors.WithMessagef(err, "request id %d", req.ID)
		}
		queries[i] = q
	}
	return queries, nil
}

func matchProofs(
	requests []protocol.ZeroKnowledgeProofRequest,
	responses []protocol.ZeroKnowledgeProofResponse,
	queries []pubsignals.Query,
) ([]proofTask, error) {
	byID := make(map[uint32]protocol.ZeroKnowledgeProofResponse, len(responses))
	for _, resp := range responses {
		if _, ok := byID[resp.ID]; ok {
			return nil, errors.Wrapf(ErrDuplicateProof, "request id %d", resp.ID)
		}
		byID[resp.ID] = resp
	}

	tasks := make([]proofTask, 0, len(requests))
	for i, req := range requests {
		resp, ok := byID[req.ID]
		if !ok {
			if req.Optional != nil && *req.Optional {
				continue
			}
			return nil, errors.Wrapf(ErrMissingProof, "request id %d", req.ID)
		}
		if req.CircuitID != resp.CircuitID {
			return nil, errors.Wrapf(ErrCircuitMismatch,
				"request id %d: requested %s - presented %s", req.ID, req.CircuitID, resp.CircuitID)
		}
		tasks = append(tasks, proofTask{request: req, response: resp, query: queries[i]})
	}
	return tasks, nil
}

type linkRecord struct {
	requestID uint32
	linkID    *big.Int
}

// linkAccumulator collects link ids per group while proofs are verified
// concurrently.
type linkAccumulator struct {
	mu     sync.Mutex
	groups map[int][]linkRecord
}

func newLinkAccumulator() *linkAccumulator {
	return &linkAccumulator{groups: make(map[int][]linkRecord)}
}

func (a *linkAccumulator) add(groupID int, requestID uint32, linkID *big.Int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.groups[groupID] = append(a.groups[groupID], linkRecord{requestID: requestID, linkID: linkID})
}

func (a *linkAccumulator) check() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for groupID, records := range a.groups {
		sort.Slice(records, func(i, j int) bool { return records[i].requestID < records[j].requestID })
		first := records[0]
		for _, r := range records[1:] {
			if r.linkID.Cmp(first.linkID) != 0 {
				return errors.Wrapf(ErrLinkIDMismatch,
					"group %d: request %d has link id %s, request %d has %s",
					groupID, first.requestID, first.linkID, r.requestID, r.linkID)
			}
		}
	}
	return nil
}
