package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	require.NotNil(t, parserPagesTotal)
	require.NotNil(t, parserTokensDiscovered)
	require.NotNil(t, parserRecordsStoredTotal)
	require.NotNil(t, parserWorkerFailuresTotal)
	require.NotNil(t, parserWorkerRestartsTotal)
	require.NotNil(t, parserQueueDepth)
	require.NotNil(t, httpRequestsTotal)
	require.NotNil(t, httpRequestDurationSeconds)
}

func TestObservePage(t *testing.T) {
	before := testutil.ToFloat64(pageCounter("observe-page", OutcomeParsed))
	ObservePage("observe-page", OutcomeParsed)
	ObservePage("observe-page", OutcomeParsed)
	ObservePage("observe-page", OutcomeMalformed)

	require.InDelta(t, before+2, testutil.ToFloat64(pageCounter("observe-page", OutcomeParsed)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(pageCounter("observe-page", OutcomeMalformed)), 0)
}

func TestObserveTokensIgnoresEmptyBatches(t *testing.T) {
	ObserveTokens("observe-tokens", 0)
	ObserveTokens("observe-tokens", 3)
	ObserveTokens("observe-tokens", -1)

	require.InDelta(t, 3, testutil.ToFloat64(parserTokensDiscovered.WithLabelValues("observe-tokens")), 0)
}

func TestWorkerCounters(t *testing.T) {
	ObserveWorkerFailure("counters")
	ObserveWorkerRestart("counters")
	ObserveWorkerRestart("counters")

	require.InDelta(t, 1, testutil.ToFloat64(parserWorkerFailuresTotal.WithLabelValues("counters")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(parserWorkerRestartsTotal.WithLabelValues("counters")), 0)
}

func TestSetQueueDepth(t *testing.T) {
	SetQueueDepth("depth", 42)
	require.InDelta(t, 42, testutil.ToFloat64(parserQueueDepth.WithLabelValues("depth")), 0)
	SetQueueDepth("depth", 0)
	require.InDelta(t, 0, testutil.ToFloat64(parserQueueDepth.WithLabelValues("depth")), 0)
}

func pageCounter(kind, outcome string) prometheus.Counter {
	Init()
	return parserPagesTotal.WithLabelValues(kind, outcome)
}
