package loaders

import (
	"net/http"
	"time"

	"github.com/iden3/go-iden3-verifier/constants"
	"github.com/iden3/go-iden3-verifier/state"
	"github.com/iden3/go-schema-processor/v2/loaders"
	"github.com/piprate/json-gold/ld"
	"github.com/pkg/errors"
)

// ErrSchemaFetchTimeout is returned when a JSON-LD document is not loaded in time.
var ErrSchemaFetchTimeout = errors.Wrap(state.ErrResolutionTimeout, "schema fetch")

// TimeoutDocumentLoader bounds every document load of the wrapped loader.
// On timeout the caller gets ErrSchemaFetchTimeout, but the wrapped load
// keeps running in its goroutine until it returns by itself. Wrap loaders
// that bound their own I/O, as NewDocumentLoader does.
type TimeoutDocumentLoader struct {
	loader  ld.DocumentLoader
	timeout time.Duration
}

// NewTimeoutDocumentLoader wraps loader. Zero timeout means
// constants.DefaultSchemaTimeout.
func NewTimeoutDocumentLoader(loader ld.DocumentLoader, timeout time.Duration) *TimeoutDocumentLoader {
	if timeout == 0 {
		timeout = constants.DefaultSchemaTimeout
	}
	return &TimeoutDocumentLoader{loader: loader, timeout: timeout}
}

// NewDocumentLoader returns the schema-processor loader, which caches
// documents and resolves ipfs:// contexts through ipfsGateway, bounded by
// timeout. Its http client carries the same timeout, so an abandoned fetch
// does not outlive it.
func NewDocumentLoader(ipfsGateway string, timeout time.Duration) *TimeoutDocumentLoader {
	if timeout == 0 {
		timeout = constants.DefaultSchemaTimeout
	}
	httpClient := &http.Client{Timeout: timeout}
	return NewTimeoutDocumentLoader(
		loaders.NewDocumentLoader(nil, ipfsGateway, loaders.WithHTTPClient(httpClient)), timeout)
}

type loadResult struct {
	doc *ld.RemoteDocument
	err error
}

// LoadDocument implements ld.DocumentLoader.
func (l *TimeoutDocumentLoader) LoadDocument(u string) (*ld.RemoteDocument, error) {
	done := make(chan loadResult, 1)
	go func() {
		doc, err := l.loader.LoadDocument(u)
		done <- loadResult{doc: doc, err: err}
	}()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.doc, r.err
	case <-timer.C:
		return nil, errors.Wrapf(ErrSchemaFetchTimeout, "%s after %s", u, l.timeout)
	}
}
