// Package assistant answers free-text questions from the loan policy
// document by returning the section that shares the most words with the
// question.
package assistant

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/metrics"
)

// Fixed replies.
const (
	NoMatchReply          = "I couldn't find specific information about that in our policy. Please contact support."
	DocumentNotFoundReply = "Policy document not found."
)

// Outcome classifies an answer for logging and metrics.
type Outcome string

const (
	OutcomeAnswered        Outcome = "answered"
	OutcomeFallback        Outcome = "fallback"
	OutcomeMissingDocument Outcome = "missing_document"
)

// Assistant reads the policy document on every question, so edits to the
// file are picked up without a restart.
type Assistant struct {
	path    string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Assistant over the document at path. m may be nil.
func New(path string, m *metrics.Metrics) *Assistant {
	return &Assistant{
		path:    path,
		metrics: m,
		logger:  slog.Default().With("component", "policy-assistant"),
	}
}

// Answer returns the best matching section or one of the fixed replies.
func (a *Assistant) Answer(query string) string {
	answer, _ := a.Lookup(query)
	return answer
}

// Lookup is Answer plus the outcome.
func (a *Assistant) Lookup(query string) (string, Outcome) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			a.logger.Error("reading policy document failed", "path", a.path, "error", err)
		} else {
			a.logger.Warn("policy document not found", "path", a.path)
		}
		a.observe(OutcomeMissingDocument)
		return DocumentNotFoundReply, OutcomeMissingDocument
	}

	section, ok := Search(string(data), query)
	if !ok {
		a.observe(OutcomeFallback)
		return NoMatchReply, OutcomeFallback
	}
	a.observe(OutcomeAnswered)
	return section, OutcomeAnswered
}

func (a *Assistant) observe(o Outcome) {
	if a.metrics != nil {
		a.metrics.AssistantQueriesTotal.WithLabelValues(string(o)).Inc()
	}
}

// Search splits text into sections on blank lines and returns the section
// whose set of lower-cased whitespace-separated words overlaps the query's
// the most. The earliest section wins a tie. ok is false when nothing
// overlaps.
func Search(text, query string) (section string, ok bool) {
	queryWords := wordSet(query)
	if len(queryWords) == 0 {
		return "", false
	}
	best := 0
	for _, s := range strings.Split(text, "\n\n") {
		overlap := 0
		for w := range wordSet(s) {
			if _, hit := queryWords[w]; hit {
				overlap++
			}
		}
		if overlap > best {
			best = overlap
			section = s
		}
	}
	return section, best > 0
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
