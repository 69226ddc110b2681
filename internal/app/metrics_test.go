package app

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/waystorm/internal/loop"
)

func TestLoopMetrics(t *testing.T) {
	reg := NewRegistry()
	l := loop.New()
	registerLoopMetrics(reg, l)

	l.Post(func() {})
	l.Post(func() { panic("boom") })
	assert.Equal(t, 2, l.Pending())

	n, err := testutil.GatherAndCount(reg, "waystorm_loop_pending")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	l.RunPending()
	ran, panicked := l.Stats()
	assert.Equal(t, uint64(2), ran)
	assert.Equal(t, uint64(1), panicked)
}

func TestMetricsServer(t *testing.T) {
	reg := NewRegistry()
	registerLoopMetrics(reg, loop.New())

	m, err := StartMetricsServer("127.0.0.1:0", reg, quietLogger())
	require.NoError(t, err)

	resp, err := http.Get("http://" + m.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "waystorm_loop_functions_run_total")

	require.NoError(t, m.Shutdown(context.Background()))
}
