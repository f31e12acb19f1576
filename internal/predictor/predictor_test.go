package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/applicant"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/assistant"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/audit"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/resilience"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, false, errors.New("connection refused")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("connection refused")
	}
	m.data[key] = value
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type fakeTracker struct {
	mu     sync.Mutex
	events []audit.PredictionEvent
}

func (f *fakeTracker) Track(e audit.PredictionEvent) {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
}

type staticAnswerer string

func (s staticAnswerer) Answer(string) string { return string(s) }

func applicantWith(credit, income float64) applicant.Record {
	return applicant.Record{
		Gender:            applicant.Ptr("Male"),
		Married:           applicant.Ptr("Yes"),
		Dependents:        applicant.Ptr("0"),
		Education:         applicant.Ptr("Graduate"),
		SelfEmployed:      applicant.Ptr("No"),
		ApplicantIncome:   applicant.Ptr(income),
		CoapplicantIncome: applicant.Ptr(0.0),
		LoanAmount:        applicant.Ptr(120.0),
		LoanAmountTerm:    applicant.Ptr(360.0),
		CreditHistory:     applicant.Ptr(credit),
		PropertyArea:      applicant.Ptr("Urban"),
	}
}

var (
	fitOnce   sync.Once
	fitted    *model.Pipeline
	fitErrMsg string
)

// testPipeline fits once per test binary: good credit with income above
// 2500 is approved.
func testPipeline(t *testing.T) *model.Pipeline {
	t.Helper()
	fitOnce.Do(func() {
		areas := []string{"Urban", "Semiurban", "Rural"}
		var records []applicant.Record
		var labels []int
		for i := 0; i < 90; i++ {
			credit := 1.0
			if i%4 == 0 {
				credit = 0
			}
			income := 2000 + float64((i*733)%6000)
			r := applicantWith(credit, income)
			r.PropertyArea = applicant.Ptr(areas[i%3])
			records = append(records, r)
			label := 0
			if credit == 1 && income > 2500 {
				label = 1
			}
			labels = append(labels, label)
		}
		p, err := model.Fit(context.Background(), records, labels, model.DefaultOptions())
		if err != nil {
			fitErrMsg = err.Error()
			return
		}
		p.Metadata.RunID = "run-test"
		fitted = p
	})
	if fitted == nil {
		t.Fatalf("fitting test pipeline: %s", fitErrMsg)
	}
	return fitted
}

func TestExplain(t *testing.T) {
	tests := []struct {
		name   string
		record applicant.Record
		status string
		want   string
	}{
		{"approved never explained", applicantWith(0, 1000), StatusApproved, ""},
		{"poor credit wins", applicantWith(0, 1000), StatusRejected, ReasonPoorCredit},
		{"low income", applicantWith(1, 2000), StatusRejected, ReasonLowIncome},
		{"income at threshold", applicantWith(1, 3000), StatusRejected, ""},
		{"missing credit is not poor", applicant.Record{ApplicantIncome: applicant.Ptr(8000.0)}, StatusRejected, ""},
		{"missing incomes count as zero", applicant.Record{CreditHistory: applicant.Ptr(1.0)}, StatusRejected, ReasonLowIncome},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Explain(tt.record, tt.status); got != tt.want {
				t.Errorf("Explain = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheGetOrCompute(t *testing.T) {
	store := newMemStore()
	c := NewCache(store, time.Minute, nil)
	ctx := context.Background()
	var calls atomic.Int32
	compute := func() (score, error) {
		calls.Add(1)
		return score{Label: 1, Probability: 0.8}, nil
	}

	key := Key("run-1", "abc")
	s, hit, err := c.GetOrCompute(ctx, key, compute)
	if err != nil || hit || s.Probability != 0.8 {
		t.Fatalf("first call = %+v hit=%v err=%v", s, hit, err)
	}
	s, hit, err = c.GetOrCompute(ctx, key, compute)
	if err != nil || !hit || s.Label != 1 {
		t.Fatalf("second call = %+v hit=%v err=%v", s, hit, err)
	}
	if calls.Load() != 1 {
		t.Errorf("compute called %d times", calls.Load())
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Errorf("stats = %d/%d", hits, misses)
	}

	n, err := c.Invalidate(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Invalidate = %d, %v", n, err)
	}
	if _, hit, _ := c.GetOrCompute(ctx, key, compute); hit {
		t.Error("expected miss after invalidation")
	}
}

func TestCacheStoreFailureDegradesToMiss(t *testing.T) {
	store := newMemStore()
	store.fail = true
	c := NewCache(store, time.Minute, nil)
	s, hit, err := c.GetOrCompute(context.Background(), "k", func() (score, error) {
		return score{Probability: 0.3}, nil
	})
	if err != nil || hit || s.Probability != 0.3 {
		t.Errorf("got %+v hit=%v err=%v", s, hit, err)
	}
}

func TestGuardedStoreFailsFast(t *testing.T) {
	store := newMemStore()
	store.fail = true
	b := resilience.NewBreaker("redis", resilience.BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	c := NewCache(Guard(store, b), time.Minute, nil)
	ctx := context.Background()
	compute := func() (score, error) { return score{Probability: 0.4}, nil }

	if _, _, err := c.GetOrCompute(ctx, "k", compute); err != nil {
		t.Fatal(err)
	}
	if b.State() != resilience.StateOpen {
		t.Fatalf("breaker state = %s", b.State())
	}
	store.fail = false
	s, hit, err := c.GetOrCompute(ctx, "k", compute)
	if err != nil || hit || s.Probability != 0.4 {
		t.Errorf("got %+v hit=%v err=%v", s, hit, err)
	}
	if len(store.data) != 0 {
		t.Error("open breaker should keep calls away from the store")
	}
}

func TestCacheComputeErrorNotStored(t *testing.T) {
	store := newMemStore()
	c := NewCache(store, time.Minute, nil)
	boom := errors.New("boom")
	if _, _, err := c.GetOrCompute(context.Background(), "k", func() (score, error) {
		return score{}, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(store.data) != 0 {
		t.Errorf("failed computation cached: %v", store.data)
	}
}

func TestServicePredict(t *testing.T) {
	tracker := &fakeTracker{}
	svc := NewFromPipeline(testPipeline(t), WithTracker(tracker))
	ctx := context.Background()

	results, err := svc.Predict(ctx, []applicant.Record{applicantWith(1, 7000), applicantWith(0, 7000)})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if results[0].Status != StatusApproved || results[0].Explanation != "" {
		t.Errorf("good applicant = %+v", results[0])
	}
	if results[1].Status != StatusRejected || results[1].Explanation != ReasonPoorCredit {
		t.Errorf("poor credit applicant = %+v", results[1])
	}
	for i, r := range results {
		if r.Probability < 0 || r.Probability > 1 {
			t.Errorf("result %d probability %v out of range", i, r.Probability)
		}
		if r.PredictionID == "" {
			t.Errorf("result %d has no prediction id", i)
		}
	}
	if results[0].Probability <= results[1].Probability {
		t.Errorf("probabilities not ordered: %v <= %v", results[0].Probability, results[1].Probability)
	}
	if len(tracker.events) != 2 || tracker.events[0].ModelRunID != "run-test" || tracker.events[1].PropertyArea != "Urban" {
		t.Errorf("tracked events = %+v", tracker.events)
	}
}

func TestServiceSingleRecordUsesCache(t *testing.T) {
	store := newMemStore()
	svc := NewFromPipeline(testPipeline(t), WithCache(NewCache(store, time.Minute, nil)))
	ctx := context.Background()
	r := applicantWith(1, 6000)

	first := svc.PredictOne(ctx, r)
	second := svc.PredictOne(ctx, r)
	if first.Error != "" || second.Error != "" {
		t.Fatalf("errors: %q %q", first.Error, second.Error)
	}
	if first.Probability != second.Probability || first.Status != second.Status {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}
	if first.PredictionID == second.PredictionID {
		t.Error("prediction ids should be unique per call")
	}
	if _, ok := store.data[Key("run-test", r.Fingerprint())]; !ok {
		t.Errorf("expected cache entry, have %v", store.data)
	}

	batch, err := svc.Predict(ctx, []applicant.Record{r, r})
	if err != nil {
		t.Fatal(err)
	}
	if batch[0].Probability != first.Probability {
		t.Errorf("batch probability %v != single %v", batch[0].Probability, first.Probability)
	}
	if len(store.data) != 1 {
		t.Errorf("batches must bypass the cache, have %d entries", len(store.data))
	}
}

func TestServiceMissingArtifact(t *testing.T) {
	svc := New(filepath.Join(t.TempDir(), "missing.lam"))
	if err := svc.Ready(context.Background()); !errors.Is(err, apperrors.ErrModelNotLoaded) {
		t.Errorf("Ready = %v", err)
	}
	res := svc.PredictOne(context.Background(), applicantWith(1, 5000))
	if res.Error != MsgModelNotFound || res.Status != "" {
		t.Errorf("result = %+v", res)
	}
	if _, err := svc.Predict(context.Background(), []applicant.Record{applicantWith(1, 5000)}); apperrors.HTTPStatusCode(err) != http.StatusServiceUnavailable {
		t.Errorf("status = %d", apperrors.HTTPStatusCode(err))
	}
}

func TestServiceLoadsSavedArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.lam")
	if err := model.Save(path, testPipeline(t)); err != nil {
		t.Fatal(err)
	}
	svc := New(path)
	meta, err := svc.Metadata()
	if err != nil || meta.RunID != "run-test" {
		t.Fatalf("Metadata = %+v, %v", meta, err)
	}
	if res := svc.PredictOne(context.Background(), applicantWith(1, 7000)); res.Status != StatusApproved {
		t.Errorf("result = %+v", res)
	}
}

func TestServiceBatchLimits(t *testing.T) {
	svc := NewFromPipeline(testPipeline(t), WithMaxBatch(2))
	ctx := context.Background()
	if _, err := svc.Predict(ctx, nil); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty batch err = %v", err)
	}
	recs := []applicant.Record{applicantWith(1, 1), applicantWith(1, 2), applicantWith(1, 3)}
	if _, err := svc.Predict(ctx, recs); apperrors.HTTPStatusCode(err) != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized batch err = %v", err)
	}
}

func TestServiceUnseenCategory(t *testing.T) {
	svc := NewFromPipeline(testPipeline(t))
	r := applicantWith(1, 7000)
	r.PropertyArea = applicant.Ptr("Offshore")
	res := svc.PredictOne(context.Background(), r)
	if res.Error != "" || res.Status == "" {
		t.Errorf("unseen category should still score, got %+v", res)
	}
}

func newTestServer(t *testing.T, svc *Service, cache *Cache) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(svc, staticAnswerer("See section 2."), cache).Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandlerPredict(t *testing.T) {
	srv := newTestServer(t, NewFromPipeline(testPipeline(t)), nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name:       "single object",
			body:       `{"Gender":"Male","Married":"Yes","Dependents":"0","Education":"Graduate","Self_Employed":"No","ApplicantIncome":7000,"CoapplicantIncome":0,"LoanAmount":120,"Loan_Amount_Term":360,"Credit_History":0,"Property_Area":"Urban"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				if body["status"] != StatusRejected || body["explanation"] != ReasonPoorCredit {
					t.Errorf("body = %v", body)
				}
			},
		},
		{
			name:       "batch with missing values",
			body:       `[{"ApplicantIncome":"7000","Credit_History":1},{"Gender":null,"Credit_History":""}]`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				results, ok := body["results"].([]any)
				if !ok || len(results) != 2 {
					t.Errorf("results = %v", body["results"])
				}
			},
		},
		{
			name:       "invalid row",
			body:       `[{"ApplicantIncome":100},{"ApplicantIncome":-5}]`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				if body["row"] != float64(1) {
					t.Errorf("row = %v", body["row"])
				}
				fields, _ := body["fields"].(map[string]any)
				if _, ok := fields[applicant.ColApplicantIncome]; !ok {
					t.Errorf("fields = %v", body["fields"])
				}
			},
		},
		{
			name:       "malformed json",
			body:       `{"ApplicantIncome":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty body",
			body:       ``,
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/predict", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var body map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestHandlerModelNotLoaded(t *testing.T) {
	srv := newTestServer(t, New(filepath.Join(t.TempDir(), "none.lam")), nil)
	resp, err := http.Post(srv.URL+"/api/v1/predict", "application/json", strings.NewReader(`{"ApplicantIncome":5000}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != MsgModelNotFound {
		t.Errorf("error = %q", body["error"])
	}
}

func TestHandlerAuxiliaryRoutes(t *testing.T) {
	cache := NewCache(newMemStore(), time.Minute, nil)
	srv := newTestServer(t, NewFromPipeline(testPipeline(t), WithCache(cache)), cache)

	tests := []struct {
		name, method, path string
		wantStatus         int
		wantKey            string
	}{
		{"assistant", http.MethodGet, "/api/v1/assistant?q=credit", http.StatusOK, "answer"},
		{"assistant without query", http.MethodGet, "/api/v1/assistant", http.StatusOK, "answer"},
		{"model", http.MethodGet, "/api/v1/model", http.StatusOK, "run_id"},
		{"options", http.MethodGet, "/api/v1/options", http.StatusOK, "defaults"},
		{"cache stats", http.MethodGet, "/api/v1/cache/stats", http.StatusOK, "hit_rate"},
		{"cache invalidate", http.MethodPost, "/api/v1/cache/invalidate", http.StatusOK, "keys_deleted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var body map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if _, ok := body[tt.wantKey]; !ok {
				t.Errorf("missing %q in %v", tt.wantKey, body)
			}
		})
	}
}

func TestEndToEndScenarios(t *testing.T) {
	svc := NewFromPipeline(testPipeline(t))
	base := func() applicant.Record {
		return applicant.Record{
			Gender:            applicant.Ptr("Male"),
			Married:           applicant.Ptr("Yes"),
			Dependents:        applicant.Ptr("0"),
			Education:         applicant.Ptr("Graduate"),
			SelfEmployed:      applicant.Ptr("No"),
			ApplicantIncome:   applicant.Ptr(5000.0),
			CoapplicantIncome: applicant.Ptr(0.0),
			LoanAmount:        applicant.Ptr(150.0),
			LoanAmountTerm:    applicant.Ptr(360.0),
			CreditHistory:     applicant.Ptr(1.0),
			PropertyArea:      applicant.Ptr("Urban"),
		}
	}
	poorCredit := base()
	poorCredit.CreditHistory = applicant.Ptr(0.0)
	lowIncome := base()
	lowIncome.ApplicantIncome = applicant.Ptr(1000.0)
	lowIncome.CoapplicantIncome = applicant.Ptr(500.0)

	tests := []struct {
		name         string
		record       applicant.Record
		rejectReason string
	}{
		{"A baseline", base(), ""},
		{"B poor credit", poorCredit, ReasonPoorCredit},
		{"C low income", lowIncome, ReasonLowIncome},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.PredictOne(context.Background(), tt.record)
			if res.Error != "" {
				t.Fatalf("error result: %s", res.Error)
			}
			if res.Status != StatusApproved && res.Status != StatusRejected {
				t.Fatalf("status = %q", res.Status)
			}
			if res.Probability < 0 || res.Probability > 1 {
				t.Errorf("probability = %v", res.Probability)
			}
			if res.Status == StatusRejected && tt.rejectReason != "" && res.Explanation != tt.rejectReason {
				t.Errorf("explanation = %q, want %q", res.Explanation, tt.rejectReason)
			}
			if res.Status == StatusApproved && res.Explanation != "" {
				t.Errorf("approved result carries explanation %q", res.Explanation)
			}
		})
	}
}

func TestHandlerAssistantBlankQueryFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.txt")
	if err := os.WriteFile(path, []byte("Credit history matters.\n\nIncome is verified."), 0o644); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	NewHandler(NewFromPipeline(testPipeline(t)), assistant.New(path, nil), nil).Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, q := range []string{"", "%20%20"} {
		resp, err := http.Get(srv.URL + "/api/v1/assistant?q=" + q)
		if err != nil {
			t.Fatal(err)
		}
		var body map[string]string
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusOK || body["answer"] != assistant.NoMatchReply {
			t.Errorf("q=%q: status %d, answer %q", q, resp.StatusCode, body["answer"])
		}
	}
}
