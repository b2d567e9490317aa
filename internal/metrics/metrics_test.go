package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrementWithoutRegistration(t *testing.T) {
	before := testutil.ToFloat64(Tasks.WithLabelValues(ResultMatched))
	Tasks.WithLabelValues(ResultMatched).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Tasks.WithLabelValues(ResultMatched)))
}

func TestRegisterIsIdempotent(t *testing.T) {
	Register()
	Register()
}

func TestStatusEndpoint(t *testing.T) {
	SetStatusSource(func() Status {
		return Status{Processed: 10, Matched: 7, Skipped: 2, Errors: 1}
	})
	t.Cleanup(func() { SetStatusSource(nil) })

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, Status{Version: "dev", Processed: 10, Matched: 7, Skipped: 2, Errors: 1}, st)
}

func TestMetricsEndpoint(t *testing.T) {
	Register()
	BytesHashed.Add(16)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSnapshotWithoutSource(t *testing.T) {
	SetStatusSource(nil)
	st := Snapshot()
	assert.Equal(t, "dev", st.Version)
	assert.Zero(t, st.Processed)
}

func TestRate(t *testing.T) {
	assert.Equal(t, "5.0", Rate(10, 2*time.Second))
	assert.Equal(t, "", Rate(10, 0))
}
