package internaldefs

import (
	"strings"
	"testing"

	goVerify "github.com/MrEthical07/goVerify"
)

func TestCounterDefsCoverEveryCounter(t *testing.T) {
	seen := make(map[goVerify.MetricID]bool)
	names := make(map[string]bool)
	for _, def := range CounterDefs {
		if seen[def.ID] {
			t.Fatalf("duplicate counter id %d", def.ID)
		}
		if names[def.Name] {
			t.Fatalf("duplicate counter name %s", def.Name)
		}
		if !strings.HasPrefix(def.Name, "goverify_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("counter name %s does not follow goverify_*_total", def.Name)
		}
		seen[def.ID] = true
		names[def.Name] = true
	}
	if len(CounterDefs) != int(goVerify.MetricSendLatency) {
		t.Fatalf("expected %d counters, got %d", goVerify.MetricSendLatency, len(CounterDefs))
	}
}

func TestHistogramBoundsMatchEngine(t *testing.T) {
	if len(HistogramBounds) != len(goVerify.HistogramUpperBounds)+1 {
		t.Fatalf("bounds length mismatch")
	}
	if len(HistogramBoundSuffix) != len(HistogramBounds) {
		t.Fatalf("suffix length mismatch")
	}
	if HistogramBounds[len(HistogramBounds)-1] != "+Inf" {
		t.Fatalf("last bound must be +Inf")
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
