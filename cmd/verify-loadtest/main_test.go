package main

import (
	"testing"
	"time"
)

func TestExtractCode(t *testing.T) {
	tests := map[string]string{
		"Your verification code is 482913. It expires in 10 minutes.": "482913",
		"expires in 15 minutes, code 000123":                          "000123",
		"no code here":                                                "",
	}
	for body, want := range tests {
		if got := extractCode(body); got != want {
			t.Fatalf("extractCode(%q) = %q, want %q", body, got, want)
		}
	}
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(samples, 50); got != 5 {
		t.Fatalf("p50 = %v", got)
	}
	if got := percentile(samples, 100); got != 10 {
		t.Fatalf("p100 = %v", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty = %v", got)
	}
}

func TestRunPhaseCountsFailures(t *testing.T) {
	stats := runPhase(100, 8, func(i int) error {
		if i%10 == 0 {
			return errTest
		}
		return nil
	})
	if stats.ops != 100 || stats.failures != 10 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("boom")
