package timing

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jstemmer/go-junit-report/v2/junit"
)

// CaseID returns the test identifier for a JUnit test case
func CaseID(tc junit.Testcase) string {
	if tc.Classname == "" {
		return tc.Name
	}
	return tc.Classname + "/" + tc.Name
}

// SplitID is the inverse of CaseID
func SplitID(id string) (classname, name string) {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[:i], id[i+1:]
	}
	return "", id
}

// ParseSeconds parses a JUnit time attribute
func ParseSeconds(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	secs, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("parse junit time %q: %w", s, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// FormatSeconds formats a duration as a JUnit time attribute
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// ErrNotJUnit is returned for XML documents whose root is not a test suite
var ErrNotJUnit = errors.New("not a junit report")

// DecodeJUnit parses a JUnit XML report with either a <testsuites> or a <testsuite> root
func DecodeJUnit(r io.Reader) (*junit.Testsuites, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read junit report: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &junit.Testsuites{}, nil
	}

	root, err := rootElement(data)
	if err != nil {
		return nil, fmt.Errorf("parse junit report: %w", err)
	}
	switch root {
	case "testsuites":
		var suites junit.Testsuites
		if err := xml.Unmarshal(data, &suites); err != nil {
			return nil, fmt.Errorf("parse junit report: %w", err)
		}
		return &suites, nil
	case "testsuite":
		var suite junit.Testsuite
		if err := xml.Unmarshal(data, &suite); err != nil {
			return nil, fmt.Errorf("parse junit report: %w", err)
		}
		return &junit.Testsuites{Suites: []junit.Testsuite{suite}}, nil
	}
	return nil, fmt.Errorf("%w: root element <%s>", ErrNotJUnit, root)
}

// rootElement returns the local name of the document's first element
func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

// FromJUnit extracts case durations from a JUnit report. Skipped cases carry
// no timing; a case seen more than once keeps its last duration.
func FromJUnit(suites *junit.Testsuites) (MapStore, error) {
	store := MapStore{}
	if suites == nil {
		return store, nil
	}
	for _, suite := range suites.Suites {
		for _, tc := range suite.Testcases {
			if tc.Skipped != nil {
				continue
			}
			d, err := ParseSeconds(tc.Time)
			if err != nil {
				return nil, err
			}
			if d > 0 {
				store[CaseID(tc)] = d
			}
		}
	}
	return store, nil
}

// EncodeJUnit writes a JUnit report as indented XML
func EncodeJUnit(w io.Writer, suites *junit.Testsuites) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(suites); err != nil {
		return fmt.Errorf("encode junit report: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}
