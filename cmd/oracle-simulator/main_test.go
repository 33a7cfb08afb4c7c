package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"flightsurety/oracle"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServerExposesSimulatorMetrics(t *testing.T) {
	metrics := oracle.NewMetrics(prometheus.DefaultRegisterer)
	metrics.Registered.Set(20)

	srv := newMetricsServer(":0")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "flightsurety_oracle_registered 20")
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWaitResult(t *testing.T) {
	live := context.Background()
	stopped, cancel := context.WithCancel(context.Background())
	cancel()
	boom := errors.New("boom")

	assert.NoError(t, waitResult(stopped, context.Canceled))
	assert.ErrorIs(t, waitResult(live, boom), boom)
	assert.EqualError(t, waitResult(live, nil), "chaincode event stream closed")
}
