package timing

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jstemmer/go-junit-report/v2/junit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flank/internal/domain"
)

const sampleReport = `<?xml version="1.0" encoding="UTF-8"?>
<testsuites>
  <testsuite name="EarlGreyExampleTests" tests="3" failures="0" errors="0" time="9.5">
    <testcase classname="EarlGreyExampleTests" name="testBasicSelection" time="2.5"></testcase>
    <testcase classname="EarlGreyExampleTests" name="testLayout" time="7.000"></testcase>
    <testcase classname="EarlGreyExampleTests" name="testSkipped" time="1.0"><skipped message="skip"></skipped></testcase>
  </testsuite>
  <testsuite name="Other" tests="1" time="1">
    <testcase name="standalone" time="1.25"></testcase>
  </testsuite>
</testsuites>
`

func TestFromJUnit(t *testing.T) {
	suites, err := DecodeJUnit(strings.NewReader(sampleReport))
	require.NoError(t, err)

	store, err := FromJUnit(suites)
	require.NoError(t, err)

	assert.Equal(t, 3, store.Len())
	d, ok := store.Lookup("EarlGreyExampleTests/testBasicSelection")
	assert.True(t, ok)
	assert.Equal(t, 2500*time.Millisecond, d)

	d, ok = store.Lookup("standalone")
	assert.True(t, ok)
	assert.Equal(t, 1250*time.Millisecond, d)

	_, ok = store.Lookup("EarlGreyExampleTests/testSkipped")
	assert.False(t, ok, "skipped cases carry no timing")
}

func TestDecodeJUnit_SingleSuiteRoot(t *testing.T) {
	report := `<testsuite name="s" tests="1"><testcase classname="A" name="b" time="3"></testcase></testsuite>`
	suites, err := DecodeJUnit(strings.NewReader(report))
	require.NoError(t, err)
	require.Len(t, suites.Suites, 1)

	store, err := FromJUnit(suites)
	require.NoError(t, err)
	d, ok := store.Lookup("A/b")
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, d)
}

func TestDecodeJUnit_Invalid(t *testing.T) {
	_, err := DecodeJUnit(strings.NewReader("<html></html>"))
	assert.ErrorIs(t, err, ErrNotJUnit)

	_, err = DecodeJUnit(strings.NewReader("<testsuites><testsuite>"))
	assert.Error(t, err)

	_, err = DecodeJUnit(strings.NewReader("not xml at all"))
	assert.Error(t, err)

	suites, err := DecodeJUnit(strings.NewReader("  "))
	require.NoError(t, err)
	assert.Empty(t, suites.Suites)
}

func TestEncodeJUnit_RoundTripsTimings(t *testing.T) {
	suites := &junit.Testsuites{Suites: []junit.Testsuite{{
		Name:      "shard_0",
		Tests:     1,
		Time:      FormatSeconds(4 * time.Second),
		Testcases: []junit.Testcase{{Classname: "A", Name: "b", Time: FormatSeconds(4 * time.Second)}},
	}}}

	var buf bytes.Buffer
	require.NoError(t, EncodeJUnit(&buf, suites))
	assert.Contains(t, buf.String(), `classname="A"`)

	decoded, err := DecodeJUnit(&buf)
	require.NoError(t, err)
	store, err := FromJUnit(decoded)
	require.NoError(t, err)
	d, _ := store.Lookup("A/b")
	assert.Equal(t, 4*time.Second, d)
}

func TestSplitID(t *testing.T) {
	class, name := SplitID("Module.Class/testMethod")
	assert.Equal(t, "Module.Class", class)
	assert.Equal(t, "testMethod", name)

	class, name = SplitID("target")
	assert.Equal(t, "", class)
	assert.Equal(t, "target", name)
}

func TestApplyAndCoverage(t *testing.T) {
	store := MapStore{"a": time.Second, "zero": 0}
	cases := []domain.TestCase{{ID: "a"}, {ID: "b"}, {ID: "zero"}}

	applied := Apply(store, cases)
	assert.Equal(t, time.Second, applied[0].Duration)
	assert.False(t, applied[1].HasDuration())
	assert.False(t, applied[2].HasDuration(), "zero durations are unknown")
	assert.False(t, cases[0].HasDuration(), "input must not be mutated")

	assert.Equal(t, 1, Coverage(store, cases))
	assert.Equal(t, 0, Coverage(nil, cases))
}

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "timings", "JUnitReport.xml")
	backend := NewFileBackend(path)

	store, err := backend.Load(ctx)
	require.NoError(t, err, "missing file is not an error")
	assert.Equal(t, 0, store.Len())

	suites, err := DecodeJUnit(strings.NewReader(sampleReport))
	require.NoError(t, err)
	require.NoError(t, backend.Upload(ctx, suites))

	store, err = backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())
	require.NoError(t, backend.Close())
}
