package metrics

import "testing"

func TestRecordRequestUpdatesSnapshot(t *testing.T) {
	m := New()
	m.RecordRequest("/chat", "POST", 200, 10)
	m.RecordRequest("/chat", "POST", 200, 20)
	m.RecordRequest("/chat", "POST", 500, 30)

	snap := m.Snapshot(WarmupInfo{})
	if snap.RequestsTotal != 3 {
		t.Fatalf("expected 3 requests, got %d", snap.RequestsTotal)
	}
	if snap.ErrorsTotal != 1 {
		t.Fatalf("expected 1 error, got %d", snap.ErrorsTotal)
	}
	if snap.LatencySamples != 3 {
		t.Fatalf("expected 3 latency samples, got %d", snap.LatencySamples)
	}
}

func TestChatInflightTracking(t *testing.T) {
	m := New()
	m.ChatInflightInc()
	m.ChatInflightInc()
	m.ChatInflightDec()

	snap := m.Snapshot(WarmupInfo{})
	if snap.ChatInflight != 1 {
		t.Fatalf("expected chat_inflight=1, got %d", snap.ChatInflight)
	}
	if snap.MaxChatInflight != 2 {
		t.Fatalf("expected max_chat_inflight=2, got %d", snap.MaxChatInflight)
	}
}

func TestRateLimitedAndBusyCounters(t *testing.T) {
	m := New()
	m.RecordRateLimited()
	m.RecordRateLimited()
	m.RecordChatBusy()

	snap := m.Snapshot(WarmupInfo{})
	if snap.RateLimitedTotal != 2 {
		t.Fatalf("expected rate_limited_total=2, got %d", snap.RateLimitedTotal)
	}
	if snap.ChatBusyTotal != 1 {
		t.Fatalf("expected chat_busy_total=1, got %d", snap.ChatBusyTotal)
	}
}

func TestSampleWindowPercentiles(t *testing.T) {
	w := newSampleWindow(10)
	for i := 1; i <= 10; i++ {
		w.add(float64(i))
	}
	if p := w.percentile(0.5); p != 5 {
		t.Fatalf("expected p50=5, got %v", p)
	}
}

func TestSampleWindowWrapsAroundCapacity(t *testing.T) {
	w := newSampleWindow(3)
	w.add(1)
	w.add(2)
	w.add(3)
	w.add(100) // overwrites the 1
	if w.count() != 3 {
		t.Fatalf("expected count capped at capacity, got %d", w.count())
	}
}
