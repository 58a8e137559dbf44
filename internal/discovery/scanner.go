package discovery

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"flank/internal/domain"
)

// Scanner builds the run's test case list
type Scanner struct {
	filter *Filter
}

// NewScanner creates a new Scanner
func NewScanner(filter *Filter) *Scanner {
	return &Scanner{filter: filter}
}

// ReadList reads test identifiers from a file, one per line.
// Blank lines and lines starting with # are skipped.
func (s *Scanner) ReadList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open test list %s: %w", path, err)
	}
	defer file.Close()

	var ids []string
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read test list %s: %w", path, err)
	}
	return ids, nil
}

// Cases assembles the test cases of a run in discovery order. When listFile is
// set, its ids are filtered by targets; otherwise targets are the ids themselves.
// Always-run ids are flagged, and appended when missing from the list.
func (s *Scanner) Cases(listFile string, targets, alwaysRun []string) ([]domain.TestCase, error) {
	var ids []string
	if listFile != "" {
		listed, err := s.ReadList(listFile)
		if err != nil {
			return nil, err
		}
		ids = s.filter.FilterByPatterns(listed, targets)
	} else {
		ids = targets
	}

	always := make(map[string]bool, len(alwaysRun))
	for _, id := range alwaysRun {
		always[id] = true
	}

	seen := make(map[string]bool, len(ids))
	cases := make([]domain.TestCase, 0, len(ids)+len(alwaysRun))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		cases = append(cases, domain.TestCase{ID: id, AlwaysRun: always[id]})
	}
	for _, id := range alwaysRun {
		if !seen[id] {
			seen[id] = true
			cases = append(cases, domain.TestCase{ID: id, AlwaysRun: true})
		}
	}
	return cases, nil
}
