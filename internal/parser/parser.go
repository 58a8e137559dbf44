package parser

import "flank/internal/domain"

// Parser extracts per-test-case results from a shard's report
type Parser interface {
	ParseResults(path string) (map[string]domain.CaseResult, error)
}
