package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/applicant"
)

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    float64
		want time.Duration
	}{
		{50, 5},
		{90, 9},
		{99, 10},
		{0, 1},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("empty percentile = %v", got)
	}
}

func TestBuildPayloads(t *testing.T) {
	records := sampleApplicants(4)

	single, err := buildPayloads(records, 1)
	if err != nil {
		t.Fatal(err)
	}
	decoded, isSingle, err := applicant.DecodeBatch(single[0])
	if err != nil || !isSingle || len(decoded) != 1 {
		t.Fatalf("single payload: records=%d single=%v err=%v", len(decoded), isSingle, err)
	}

	batched, err := buildPayloads(records, 3)
	if err != nil {
		t.Fatal(err)
	}
	var window []json.RawMessage
	if err := json.Unmarshal(batched[3], &window); err != nil {
		t.Fatal(err)
	}
	if len(window) != 3 {
		t.Errorf("window = %d records", len(window))
	}

	if _, err := buildPayloads(nil, 1); err == nil {
		t.Error("expected error for no records")
	}
}

func TestSampleApplicantsCoverBothCreditValues(t *testing.T) {
	seen := map[float64]bool{}
	for _, r := range sampleApplicants(12) {
		if err := r.Validate(); err != nil {
			t.Fatalf("invalid sample: %v", err)
		}
		seen[*r.CreditHistory] = true
	}
	if !seen[0] || !seen[1] {
		t.Errorf("credit values seen = %v", seen)
	}
}

func TestStatsAndReport(t *testing.T) {
	s := NewStats()
	s.RecordRequest(10*time.Millisecond, 200, nil)
	s.RecordRequest(20*time.Millisecond, 503, nil)
	s.RecordRequest(0, 0, errors.New("refused"))

	var buf bytes.Buffer
	if ok := printReport(&buf, s, time.Second); !ok {
		t.Fatal("report should succeed with completed requests")
	}
	out := buf.String()
	for _, want := range []string{"Total Requests:  3", "Errors:          2", "200: 1", "503: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	if ok := printReport(&bytes.Buffer{}, NewStats(), time.Second); ok {
		t.Error("empty run should report failure")
	}
}
