package parser

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jstemmer/go-junit-report/v2/junit"

	"flank/internal/domain"
	"flank/internal/timing"
)

// JUnitParser parses JUnit XML reports written by shard commands
type JUnitParser struct{}

// NewJUnitParser creates a new JUnitParser
func NewJUnitParser() *JUnitParser {
	return &JUnitParser{}
}

// ParseResults returns the raw result of every case in the report, keyed by id.
// A missing report yields no results. Skipped cases count as passed.
func (p *JUnitParser) ParseResults(path string) (map[string]domain.CaseResult, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]domain.CaseResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open junit report: %w", err)
	}
	defer file.Close()

	suites, err := timing.DecodeJUnit(file)
	if err != nil {
		return nil, err
	}

	results := make(map[string]domain.CaseResult)
	for _, suite := range suites.Suites {
		for _, tc := range suite.Testcases {
			results[timing.CaseID(tc)] = p.parseCase(tc)
		}
	}
	return results, nil
}

func (p *JUnitParser) parseCase(tc junit.Testcase) domain.CaseResult {
	d, _ := timing.ParseSeconds(tc.Time)
	result := domain.CaseResult{
		ID:       timing.CaseID(tc),
		Status:   domain.CasePassed,
		Duration: d,
	}

	failure := tc.Failure
	if failure == nil {
		failure = tc.Error
	}
	if failure != nil {
		result.Status = domain.CaseFailed
		result.Message = failureMessage(failure)
	}
	return result
}

// failureMessage prefers the message attribute, falling back to the first line of the body
func failureMessage(r *junit.Result) string {
	if msg := strings.TrimSpace(r.Message); msg != "" {
		return msg
	}
	body := strings.TrimSpace(r.Data)
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[:i]
	}
	return body
}

// CountResults returns passed and failed counts of raw results
func CountResults(results map[string]domain.CaseResult) (passed, failed int) {
	for _, r := range results {
		if r.Status == domain.CasePassed {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}
