package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"flank/internal/domain"
	"flank/internal/sharding"
	"flank/internal/timing"
)

// Formatter formats and displays output
type Formatter struct {
	out io.Writer
}

// NewFormatter creates a new Formatter writing to stdout
func NewFormatter() *Formatter {
	return NewFormatterTo(os.Stdout)
}

// NewFormatterTo creates a new Formatter writing to w
func NewFormatterTo(w io.Writer) *Formatter {
	return &Formatter{out: w}
}

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	white  = color.New(color.FgWhite)
)

// PrintReport displays the run statistics, the pass percentage and the failure tree
func (f *Formatter) PrintReport(report *domain.RunReport) {
	fmt.Fprint(f.out, "\n")
	cyan.Fprintln(f.out, "╔═══════════════════════════════════════════════════════════════╗")
	cyan.Fprintln(f.out, "║                     Test Run Statistics                       ║")
	cyan.Fprintln(f.out, "╚═══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(f.out)

	fmt.Fprintln(f.out, "┌─────────────────────────────────┬─────────────────────────────┐")
	f.row("Run", white, report.RunID)
	f.separator()
	f.row("Test Cases", white, report.Total)
	f.separator()
	f.row("Passed", green, report.Passed)
	f.separator()
	f.row("Flaky", yellow, report.Flaky)
	f.separator()
	f.row("Failed", red, report.Failed)
	f.separator()
	f.row("Timed Out", red, report.TimedOut)
	f.separator()
	f.row("Shards", white, len(report.Shards))
	f.separator()
	f.row("Duration", white, fmt.Sprintf("%.2fs", report.Duration.Seconds()))
	f.separator()
	f.row("Timestamp", white, report.Timestamp)
	fmt.Fprintln(f.out, "└─────────────────────────────────┴─────────────────────────────┘")
	fmt.Fprintln(f.out)

	switch {
	case report.Success():
		green.Fprintf(f.out, "✓ %s\n", report.PassPercentage())
	case !report.Complete:
		red.Fprintf(f.out, "✗ %s, run timed out before every shard finished\n", report.PassPercentage())
	default:
		red.Fprintf(f.out, "✗ %s\n", report.PassPercentage())
	}

	if failures := report.Failures(); len(failures) > 0 {
		fmt.Fprintln(f.out)
		f.printFailureTree(failures)
	}
}

func (f *Formatter) row(label string, c *color.Color, value interface{}) {
	fmt.Fprintf(f.out, "│ %-31s │ ", label)
	c.Fprintf(f.out, "%-27v", value)
	fmt.Fprintln(f.out, " │")
}

func (f *Formatter) separator() {
	fmt.Fprintln(f.out, "├─────────────────────────────────┼─────────────────────────────┤")
}

// TreeNode groups failed cases of a shard by class
type TreeNode struct {
	Name     string
	Children map[string]*TreeNode
	Failures []domain.CaseResult
}

// printFailureTree prints shard -> class -> case for every non-passing case
func (f *Formatter) printFailureTree(failures []domain.ShardCase) {
	root := &TreeNode{Children: make(map[string]*TreeNode)}
	for _, fc := range failures {
		shardKey := fmt.Sprintf("shard %03d", fc.Shard)
		shard := root.child(shardKey)
		classname, _ := timing.SplitID(fc.Result.ID)
		if classname == "" {
			classname = "(no class)"
		}
		class := shard.child(classname)
		class.Failures = append(class.Failures, fc.Result)
	}

	for i, shardKey := range sortedKeys(root.Children) {
		shard := root.Children[shardKey]
		lastShard := i == len(root.Children)-1
		cyan.Fprintf(f.out, "%s%s\n", branch(lastShard), shardKey)

		prefix := indent(lastShard)
		for j, classKey := range sortedKeys(shard.Children) {
			class := shard.Children[classKey]
			lastClass := j == len(shard.Children)-1
			yellow.Fprintf(f.out, "%s%s%s\n", prefix, branch(lastClass), classKey)

			casePrefix := prefix + indent(lastClass)
			for k, c := range class.Failures {
				_, name := timing.SplitID(c.ID)
				line := fmt.Sprintf("%s%s%s [%s]", casePrefix, branch(k == len(class.Failures)-1), name, c.Status)
				if c.Status == domain.CaseFlaky {
					yellow.Fprintln(f.out, line)
				} else {
					red.Fprintln(f.out, line)
				}
			}
		}
	}
}

func (n *TreeNode) child(name string) *TreeNode {
	c, ok := n.Children[name]
	if !ok {
		c = &TreeNode{Name: name, Children: make(map[string]*TreeNode)}
		n.Children[name] = c
	}
	return c
}

func sortedKeys(m map[string]*TreeNode) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func branch(last bool) string {
	if last {
		return "└── "
	}
	return "├── "
}

func indent(last bool) string {
	if last {
		return "    "
	}
	return "│   "
}

// PrintPlan prints the planned shards with their estimates
func (f *Formatter) PrintPlan(shards []domain.Shard, strategy sharding.Strategy, verbose bool) {
	var total time.Duration
	cases := 0
	for _, s := range shards {
		total += s.Estimate
		cases += len(s.Cases)
	}
	green.Fprintf(f.out, "Planned %d shard(s) with %d test case(s) using %s\n", len(shards), cases, strategy)
	fmt.Fprintln(f.out)

	for i, s := range shards {
		last := i == len(shards)-1
		cyan.Fprintf(f.out, "%sshard %d", branch(last), s.Index)
		fmt.Fprintf(f.out, " (%d case(s), estimate %s)\n", len(s.Cases), s.Estimate.Round(time.Millisecond))
		if !verbose {
			continue
		}
		prefix := indent(last)
		for j, tc := range s.Cases {
			name := tc.ID
			if tc.AlwaysRun {
				name += " " + white.Sprint("[always]")
			}
			fmt.Fprintf(f.out, "%s%s%s\n", prefix, branch(j == len(s.Cases)-1), yellow.Sprint(name))
		}
	}

	if len(shards) > 0 {
		fmt.Fprintln(f.out)
		fmt.Fprintf(f.out, "Makespan estimate: %s, total %s\n", makespan(shards).Round(time.Millisecond), total.Round(time.Millisecond))
	}
}

func makespan(shards []domain.Shard) time.Duration {
	var longest time.Duration
	for _, s := range shards {
		if s.Estimate > longest {
			longest = s.Estimate
		}
	}
	return longest
}

// PrintAcknowledgements prints the async submission result of every shard
func (f *Formatter) PrintAcknowledgements(runID string, acks []domain.Acknowledgement) {
	green.Fprintf(f.out, "Submitted %d shard(s) for run %s\n", len(acks), runID)
	for _, ack := range acks {
		if ack.Err != nil {
			red.Fprintf(f.out, "  ✗ shard %d: %v\n", ack.ShardIndex, ack.Err)
			continue
		}
		fmt.Fprintf(f.out, "  ✓ shard %d: %s\n", ack.ShardIndex, ack.JobID)
	}
}

// FormatCaseList joins case ids for one-line log output
func FormatCaseList(ids []string, limit int) string {
	if limit <= 0 || len(ids) <= limit {
		return strings.Join(ids, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(ids[:limit], ", "), len(ids)-limit)
}
