package infra

import (
	"sync"
	"testing"
)

func TestMetrics_SubmitAndLatency(t *testing.T) {
	m := &Metrics{}

	m.RecordSubmit(100, 2)
	m.RecordSubmit(300, 0)

	snap := m.Snapshot()
	if snap.OrdersSubmitted != 2 {
		t.Errorf("expected 2 submits, got %d", snap.OrdersSubmitted)
	}
	if snap.TradesExecuted != 2 {
		t.Errorf("expected 2 trades, got %d", snap.TradesExecuted)
	}
	if snap.AvgMatchLatencyNs != 200 {
		t.Errorf("expected avg latency 200ns, got %d", snap.AvgMatchLatencyNs)
	}
}

func TestMetrics_Concurrent(t *testing.T) {
	m := &Metrics{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordSubmit(10, 1)
			m.RecordReject()
			m.RecordQuoteFetch()
			m.IncrementStreams()
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.OrdersSubmitted != 50 || snap.OrdersRejected != 50 || snap.QuoteFetches != 50 {
		t.Errorf("unexpected counters: %+v", snap)
	}
	if snap.ActiveStreams != 50 {
		t.Errorf("expected 50 active streams, got %d", snap.ActiveStreams)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}
	m.RecordSubmit(5, 1)
	m.RecordCancel()
	m.RecordQuoteError()

	m.Reset()

	snap := m.Snapshot()
	if snap.OrdersSubmitted != 0 || snap.OrdersCanceled != 0 || snap.QuoteErrors != 0 {
		t.Errorf("reset should zero everything, got %+v", snap)
	}
}
