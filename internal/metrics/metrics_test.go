package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := NewPrometheusObserver("test", reg)
	if err != nil {
		t.Fatalf("new observer: %v", err)
	}
	o.RecordOperation("pay", "ok", 10*time.Millisecond)
	o.RecordOperation("pay", "insufficient_funds", time.Millisecond)
	o.RecordSettlement("balance", 1250)
	o.RecordExpired(3)

	if got := testutil.ToFloat64(o.operations.WithLabelValues("pay", "ok")); got != 1 {
		t.Fatalf("expected 1 ok pay, got %v", got)
	}
	if got := testutil.ToFloat64(o.settled.WithLabelValues("balance")); got != 1250 {
		t.Fatalf("expected 1250 settled cents, got %v", got)
	}
	if got := testutil.ToFloat64(o.expired); got != 3 {
		t.Fatalf("expected 3 expired, got %v", got)
	}

	again, err := NewPrometheusObserver("test", reg)
	if err != nil {
		t.Fatalf("re-register should reuse collectors: %v", err)
	}
	again.RecordExpired(1)
	if got := testutil.ToFloat64(o.expired); got != 4 {
		t.Fatalf("expected shared counter at 4, got %v", got)
	}
}
