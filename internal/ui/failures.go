package ui

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"flank/internal/domain"
	"flank/internal/timing"
)

// FailureViewer displays failed, timed-out and flaky cases of a run in an interactive TUI
type FailureViewer struct{}

// NewFailureViewer creates a new FailureViewer
func NewFailureViewer() *FailureViewer {
	return &FailureViewer{}
}

// View displays the report's failures in an interactive TUI
func (fv *FailureViewer) View(report *domain.RunReport) error {
	all := report.Failures()
	if len(all) == 0 {
		color.Green("✓ No test failures found!")
		return nil
	}

	hideFlaky := false
	visible := all

	app := tview.NewApplication()

	list := tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true)

	list.SetMainTextColor(tview.Styles.PrimaryTextColor).
		SetSelectedTextColor(tcell.ColorWhite).
		SetSelectedBackgroundColor(tcell.ColorDarkCyan).
		SetSecondaryTextColor(tview.Styles.SecondaryTextColor)

	statsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetWordWrap(false)

	detailsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetWordWrap(true)

	detailsContainer := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(detailsView, 0, 1, false).
		AddItem(tview.NewBox(), 2, 0, false)

	rightSide := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(statsView, 3, 0, false).
		AddItem(detailsContainer, 0, 1, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(list, 0, 1, true).
		AddItem(rightSide, 0, 2, false)

	headerView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true)

	updateHeader := func() {
		headerView.SetText(fmt.Sprintf(" %s | %d shown | Use ↑↓ to navigate, [yellow]F[white] to toggle flaky, → to view details, ← to go back, Ctrl+C to exit ",
			report.PassPercentage(), len(visible)))
	}

	updateDetails := func() {
		index := list.GetCurrentItem()
		if index >= 0 && index < len(visible) {
			statsView.SetText(formatFailureStats(visible[index]))
			detailsView.SetText(formatFailureDetails(visible[index]))
		} else {
			statsView.SetText("")
			detailsView.SetText("")
		}
	}

	fill := func() {
		visible = filterFailures(all, hideFlaky)
		list.Clear()
		for i, fc := range visible {
			list.AddItem(listItemText(i, fc), "", 0, nil)
		}
		updateHeader()
		updateDetails()
	}

	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyUp, tcell.KeyDown:
			return event
		case tcell.KeyEnter, tcell.KeyRight:
			app.SetFocus(detailsView)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'f' || event.Rune() == 'F' {
				hideFlaky = !hideFlaky
				fill()
				return nil
			}
		}
		return event
	})

	detailsView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyLeft, tcell.KeyEsc:
			app.SetFocus(list)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		}
		return event
	})

	list.SetChangedFunc(func(index int, mainText string, secondaryText string, shortcut rune) {
		updateDetails()
	})

	fill()

	mainLayout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(headerView, 1, 0, false).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(flex, 0, 1, true)

	if err := app.SetRoot(mainLayout, true).SetFocus(list).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func filterFailures(all []domain.ShardCase, hideFlaky bool) []domain.ShardCase {
	if !hideFlaky {
		return all
	}
	out := make([]domain.ShardCase, 0, len(all))
	for _, fc := range all {
		if fc.Result.Status != domain.CaseFlaky {
			out = append(out, fc)
		}
	}
	return out
}

// listItemText formats a list entry using tview color tags
func listItemText(index int, fc domain.ShardCase) string {
	tag := "[red]"
	if fc.Result.Status == domain.CaseFlaky {
		tag = "[gray]"
	}
	return fmt.Sprintf("[yellow]%d.%s %s[white]", index+1, tag, fc.Result.ID)
}

// formatFailureDetails formats a case result for display using tview color tags
func formatFailureDetails(fc domain.ShardCase) string {
	var builder strings.Builder
	w := tabwriter.NewWriter(&builder, 0, 0, 2, ' ', 0)

	r := fc.Result
	switch r.Status {
	case domain.CaseFlaky:
		fmt.Fprintf(w, "[yellow]~ Flaky: %s[white]\n\n", r.ID)
	case domain.CaseTimedOut:
		fmt.Fprintf(w, "[red]⏱ Timed out: %s[white]\n\n", r.ID)
	default:
		fmt.Fprintf(w, "[red]✗ Test: %s[white]\n\n", r.ID)
	}

	fmt.Fprintf(w, "[cyan]Shard:\t%d[white]\n", fc.Shard)
	fmt.Fprintf(w, "[cyan]Status:\t%s[white]\n", r.Status)
	fmt.Fprintf(w, "[cyan]Attempts:\t%d[white]\n", r.Attempts)
	if r.Duration > 0 {
		fmt.Fprintf(w, "[cyan]Duration:\t%s[white]\n", r.Duration)
	}
	fmt.Fprintf(w, "\n")

	if r.Message != "" {
		fmt.Fprintf(w, "[yellow]Message:[white]\n%s\n", tview.Escape(r.Message))
	}

	w.Flush()
	return builder.String()
}

// formatFailureStats formats the stats header for a case result
func formatFailureStats(fc domain.ShardCase) string {
	classname, name := timing.SplitID(fc.Result.ID)
	if classname == "" {
		classname = "-"
	}
	return fmt.Sprintf("[cyan]shard:[white] [yellow]%d[white] [cyan]class:[white] [yellow]%s[white]::[yellow]%s[white]\n", fc.Shard, classname, name)
}
