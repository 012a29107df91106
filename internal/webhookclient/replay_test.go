package webhookclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaySendsLinesInOrder(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/webhook", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
		if strings.Contains(string(body), "deleteJob") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Unknown action: deleteJob"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	input := strings.Join([]string{
		`# recorded 2026-03-14`,
		`{"action":"createJobDetails","data":{"name":"Ada"}}`,
		``,
		`{"action":"deleteJob"}`,
		`{not json`,
		`  {"action":"getJob","data":{"phone_number":"555"}}  `,
	}, "\n")

	var results []ReplayResult
	summary, err := Replay(context.Background(), NewClient(server.URL, fastOptions(server)), strings.NewReader(input), "/v1/webhook", func(r ReplayResult) {
		results = append(results, r)
	})
	require.NoError(t, err)
	assert.Equal(t, ReplaySummary{Sent: 2, Failed: 2, Skipped: 2}, summary)

	require.Len(t, results, 4)
	assert.Equal(t, 2, results[0].Line)
	assert.Error(t, results[1].Err)
	assert.Equal(t, 5, results[2].Line)
	assert.Error(t, results[2].Err)
	assert.NoError(t, results[3].Err)

	require.Len(t, bodies, 3, "invalid json is never sent")
	assert.Equal(t, `{"action":"getJob","data":{"phone_number":"555"}}`, bodies[2])
}

func TestReplayStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := Replay(ctx, NewClient("http://127.0.0.1:1", Options{}), strings.NewReader(`{"a":1}`), "/", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Sent)
}
