package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ashfaaq98/stixkit/internal/batch"
	"github.com/Ashfaaq98/stixkit/internal/bus"
	"github.com/Ashfaaq98/stixkit/internal/remap"
)

const sampleBundle = `{"type": "bundle", "objects": [
	{"type": "indicator", "id": "indicator--AAA"},
	{"type": "relationship", "id": "relationship--BBB", "source_ref": "indicator--AAA"}
]}`

type recordingBus struct {
	bus.NullBus
	mu   sync.Mutex
	msgs []bus.DocumentMessage
}

func (b *recordingBus) PublishDocument(ctx context.Context, msg bus.DocumentMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
	return nil
}

func (b *recordingBus) messages() []bus.DocumentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bus.DocumentMessage(nil), b.msgs...)
}

type stubValidator struct {
	lines []string
	err   error
}

func (v stubValidator) ValidateBytes(data []byte) ([]string, error) {
	return v.lines, v.err
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *recordingBus) {
	t.Helper()
	rb := &recordingBus{}
	opts.Bus = rb
	opts.Logger = zap.NewNop()
	opts.Pipeline = batch.DefaultPipeline(nil, remap.Options{})
	srv := httptest.NewServer(NewServer(opts).Handler())
	t.Cleanup(srv.Close)
	return srv, rb
}

func post(t *testing.T, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestFixEndpoint(t *testing.T) {
	srv, rb := newTestServer(t, Options{})

	resp := post(t, srv.URL+"/v1/fix", "", sampleBundle)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get(HeaderRemapped))
	assert.Equal(t, "true", resp.Header.Get(HeaderChanged))
	assert.NotEmpty(t, resp.Header.Get(HeaderRequestID))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "indicator--AAA")

	var doc struct {
		Objects []map[string]any `json:"objects"`
	}
	require.NoError(t, json.Unmarshal(body, &doc))
	require.Len(t, doc.Objects, 2)
	assert.Equal(t, doc.Objects[0]["id"], doc.Objects[1]["source_ref"])

	msgs := rb.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "serve", msgs[0].Command)
	assert.Equal(t, "fixed", msgs[0].Status)
	assert.Equal(t, 2, msgs[0].Remapped)
}

func TestFixEndpointRejects(t *testing.T) {
	srv, rb := newTestServer(t, Options{})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"objects": [`, http.StatusBadRequest},
		{"top level array", `[1, 2]`, http.StatusBadRequest},
		{"no objects", `{"type": "bundle"}`, http.StatusUnprocessableEntity},
		{"empty body", "   ", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv.URL+"/v1/fix", "", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)

			var er errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&er))
			assert.NotEmpty(t, er.Error)
		})
	}

	// empty body is rejected before the pipeline runs
	msgs := rb.messages()
	assert.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.Equal(t, "failed", m.Status)
	}
}

func TestAuthAndMethod(t *testing.T) {
	srv, _ := newTestServer(t, Options{Token: "s3cret"})

	resp := post(t, srv.URL+"/v1/fix", "", sampleBundle)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")

	resp = post(t, srv.URL+"/v1/fix", "wrong", sampleBundle)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = post(t, srv.URL+"/v1/fix", "s3cret", sampleBundle)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	get, err := http.Get(srv.URL + "/v1/fix")
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestBodyLimit(t *testing.T) {
	srv, _ := newTestServer(t, Options{MaxBodyBytes: 16})

	resp := post(t, srv.URL+"/v1/fix", "", sampleBundle)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestValidateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{Validator: stubValidator{lines: []string{"[X] /objects/0: missing id"}}})

	resp := post(t, srv.URL+"/v1/validate", "", sampleBundle)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var vr ValidateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&vr))
	assert.False(t, vr.Valid)
	assert.Equal(t, []string{"[X] /objects/0: missing id"}, vr.Errors)

	noValidator, _ := newTestServer(t, Options{})
	resp = post(t, noValidator.URL+"/v1/validate", "", sampleBundle)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewServer(Options{
		Bind:     "127.0.0.1:0",
		Pipeline: batch.DefaultPipeline(nil, remap.Options{}),
	})

	addr, err := s.Start(ctx)
	require.NoError(t, err)

	_, err = s.Start(ctx)
	assert.Error(t, err)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err == nil {
			resp.Body.Close()
		}
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestLimiter(t *testing.T) {
	l := newSimpleLimiter(1, 2)
	defer l.Close()

	ctx := context.Background()
	require.NoError(t, l.Wait(ctx))
	require.NoError(t, l.Wait(ctx))

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(short), context.DeadlineExceeded)

	var nilLimiter *simpleLimiter
	assert.NoError(t, nilLimiter.Wait(ctx))
	nilLimiter.Close()
}
