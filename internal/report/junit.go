package report

import (
	"fmt"

	"github.com/jstemmer/go-junit-report/v2/junit"

	"flank/internal/domain"
	"flank/internal/timing"
)

// ToJUnit renders the report with one test suite per shard. Case times come
// from the final attempt, which makes the output usable as timing data.
func ToJUnit(report domain.RunReport) *junit.Testsuites {
	suites := &junit.Testsuites{
		Name: report.RunID,
		Time: timing.FormatSeconds(report.Duration),
	}

	for _, shard := range report.Shards {
		suite := junit.Testsuite{
			Name:      fmt.Sprintf("shard_%d", shard.Index),
			Time:      timing.FormatSeconds(shard.Duration),
			Timestamp: report.Timestamp,
		}
		for _, c := range shard.Cases {
			suite.Testcases = append(suite.Testcases, testcase(c))
			suite.Tests++
			switch c.Status {
			case domain.CaseTerminal:
				suite.Failures++
			case domain.CaseTimedOut:
				suite.Errors++
			}
		}
		suites.Suites = append(suites.Suites, suite)
		suites.Tests += suite.Tests
		suites.Failures += suite.Failures
		suites.Errors += suite.Errors
	}
	return suites
}

func testcase(c domain.CaseResult) junit.Testcase {
	classname, name := timing.SplitID(c.ID)
	tc := junit.Testcase{
		Name:      name,
		Classname: classname,
		Time:      timing.FormatSeconds(c.Duration),
	}
	if c.Duration == 0 {
		tc.Time = ""
	}

	switch c.Status {
	case domain.CaseTerminal:
		tc.Failure = &junit.Result{Message: c.Message, Type: "failure"}
	case domain.CaseTimedOut:
		tc.Error = &junit.Result{Message: c.Message, Type: "timeout"}
	case domain.CaseFlaky:
		tc.SystemOut = &junit.Output{Data: fmt.Sprintf("flaky: passed on attempt %d", c.Attempts)}
	}
	return tc
}
