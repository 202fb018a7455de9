package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
)

var _ comm.Metrics = (*CommMetrics)(nil)

func TestCommMetrics_Counters(t *testing.T) {
	m := NewCommMetrics()

	m.Published("alice")
	m.Published("alice")
	m.Buffered("alice")
	m.Retried("bob")
	m.Dropped("bob")
	m.DecodeFailed("alice")
	m.LiveNodes(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.published.WithLabelValues("alice")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.buffered.WithLabelValues("alice")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retried.WithLabelValues("bob")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("bob")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodeErrors.WithLabelValues("alice")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.liveNodes))
}

func TestCommMetrics_Handler(t *testing.T) {
	m := NewCommMetrics()
	m.Published("alice")
	m.LiveNodes(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `omnisys_comm_published_total{identity="alice"} 1`)
	assert.Contains(t, string(body), "omnisys_comm_live_nodes 1")
	assert.Contains(t, string(body), "go_goroutines")
}
