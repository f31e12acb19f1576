// Command loadtest drives concurrent prediction traffic against the
// predictor service and reports latency percentiles and a status histogram.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s] [-batch 1]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/applicant"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	BatchSize   int
	Payloads    [][]byte
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
	}
}

// RecordRequest counts one request. Transport failures have no status code
// and no latency sample.
func (s *Stats) RecordRequest(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, duration)
	s.statusCodes[statusCode]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the predictor service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	batch := flag.Int("batch", 1, "applicants per request; 1 sends single objects")
	samples := flag.Int("samples", 50, "distinct applicants to rotate through")
	flag.Parse()

	payloads, err := buildPayloads(sampleApplicants(*samples), *batch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building payloads: %v\n", err)
		os.Exit(1)
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		BatchSize:   *batch,
		Payloads:    payloads,
	}

	fmt.Println("=== Loan Prediction Load Test ===")
	fmt.Printf("Target:      %s/api/v1/predict\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Batch size:  %d\n", cfg.BatchSize)
	fmt.Printf("Payloads:    %d distinct\n", len(cfg.Payloads))
	fmt.Println()

	stats := runLoadTest(cfg)
	if ok := printReport(os.Stdout, stats, cfg.Duration); !ok {
		os.Exit(1)
	}
}

// sampleApplicants spreads n records over the form options so requests hit
// both outcomes and a range of cache keys.
func sampleApplicants(n int) []applicant.Record {
	records := make([]applicant.Record, n)
	for i := range records {
		records[i] = applicant.Record{
			Gender:            applicant.Ptr(applicant.GenderOptions[i%len(applicant.GenderOptions)]),
			Married:           applicant.Ptr(applicant.MarriedOptions[i%len(applicant.MarriedOptions)]),
			Dependents:        applicant.Ptr(applicant.DependentsOptions[i%len(applicant.DependentsOptions)]),
			Education:         applicant.Ptr(applicant.EducationOptions[i%len(applicant.EducationOptions)]),
			SelfEmployed:      applicant.Ptr(applicant.SelfEmployedOptions[i%len(applicant.SelfEmployedOptions)]),
			ApplicantIncome:   applicant.Ptr(float64(1500 + (i*911)%9000)),
			CoapplicantIncome: applicant.Ptr(float64((i * 377) % 3000)),
			LoanAmount:        applicant.Ptr(float64(60 + (i*13)%240)),
			LoanAmountTerm:    applicant.Ptr(applicant.LoanTermOptions[i%len(applicant.LoanTermOptions)]),
			CreditHistory:     applicant.Ptr(applicant.CreditHistoryOptions[(i/3)%len(applicant.CreditHistoryOptions)]),
			PropertyArea:      applicant.Ptr(applicant.PropertyAreaOptions[i%len(applicant.PropertyAreaOptions)]),
		}
	}
	return records
}

// buildPayloads encodes records one per payload, or in rotating windows of
// batch records when batch > 1.
func buildPayloads(records []applicant.Record, batch int) ([][]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no sample applicants")
	}
	payloads := make([][]byte, len(records))
	for i := range records {
		var v any = records[i]
		if batch > 1 {
			window := make([]applicant.Record, batch)
			for j := range window {
				window[j] = records[(i+j)%len(records)]
			}
			v = window
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		payloads[i] = data
	}
	return payloads, nil
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	predictURL := cfg.BaseURL + "/api/v1/predict"

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			next := w
			for ctx.Err() == nil {
				body := cfg.Payloads[next%len(cfg.Payloads)]
				next++

				req, err := http.NewRequestWithContext(ctx, http.MethodPost, predictURL, bytes.NewReader(body))
				if err != nil {
					return fmt.Errorf("creating request: %w", err)
				}
				req.Header.Set("Content-Type", "application/json")

				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					stats.RecordRequest(elapsed, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.RecordRequest(elapsed, resp.StatusCode, nil)
			}
			return nil
		})
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "\nworker failed: %v\n", err)
	}
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

// printReport writes the summary and reports whether any request completed.
func printReport(w io.Writer, stats *Stats, duration time.Duration) bool {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	failures := stats.errorCount.Load()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", success)
	fmt.Fprintf(w, "Errors:          %d\n", failures)
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(failures)/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	latencies := slices.Clone(stats.latencies)
	codes := make(map[int]int64, len(stats.statusCodes))
	for code, n := range stats.statusCodes {
		codes[code] = n
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", avg)
		fmt.Fprintf(w, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P90:    %s\n", percentile(latencies, 90))
		fmt.Fprintf(w, "P95:    %s\n", percentile(latencies, 95))
		fmt.Fprintf(w, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	keys := make([]int, 0, len(codes))
	for code := range codes {
		keys = append(keys, code)
	}
	slices.Sort(keys)
	for _, code := range keys {
		fmt.Fprintf(w, "  %d: %d\n", code, codes[code])
	}

	if total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: No requests completed. Is the predictor running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
