package loaders

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iden3/go-iden3-verifier/state"
	"github.com/piprate/json-gold/ld"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type slowDocumentLoader struct {
	delay time.Duration
}

func (s slowDocumentLoader) LoadDocument(u string) (*ld.RemoteDocument, error) {
	time.Sleep(s.delay)
	return &ld.RemoteDocument{DocumentURL: u, Document: map[string]any{}}, nil
}

func TestTimeoutDocumentLoader(t *testing.T) {
	t.Run("in time", func(t *testing.T) {
		l := NewTimeoutDocumentLoader(slowDocumentLoader{}, time.Second)
		doc, err := l.LoadDocument("https://example.com/ctx.jsonld")
		require.NoError(t, err)
		require.Equal(t, "https://example.com/ctx.jsonld", doc.DocumentURL)
	})

	t.Run("timeout", func(t *testing.T) {
		l := NewTimeoutDocumentLoader(slowDocumentLoader{delay: 200 * time.Millisecond}, 20*time.Millisecond)
		_, err := l.LoadDocument("https://example.com/ctx.jsonld")
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrSchemaFetchTimeout))
		require.True(t, errors.Is(err, state.ErrResolutionTimeout))
	})
}

func TestNewDocumentLoader_AbandonedFetchIsCanceled(t *testing.T) {
	canceled := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			close(canceled)
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	l := NewDocumentLoader("", 50*time.Millisecond)
	_, err := l.LoadDocument(srv.URL + "/ctx.jsonld")
	require.Error(t, err)

	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("request to the schema server outlived the timeout")
	}
}
