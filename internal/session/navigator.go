package session

import "github.com/csheth/intelscout/internal/report"

// Navigator owns the view state over the current report's section list. It is
// reset every time the report is replaced and enforces one invariant at every
// transition: individual mode never has an empty selection while sections
// exist.
type Navigator struct {
	view     ViewState
	sections []report.Section
}

// Reset installs a new section list, returning to ViewAll with the first
// section (if any) as the scroll anchor.
func (n *Navigator) Reset(sections []report.Section) {
	n.sections = sections
	n.view = ViewState{Mode: ViewAll, SelectedSectionID: report.FirstID(sections)}
}

// SelectInViewAll records a scroll anchor without leaving ViewAll. Scrolling
// itself is a presentation concern.
func (n *Navigator) SelectInViewAll(id string) {
	if report.IndexOf(n.sections, id) < 0 {
		return
	}
	n.view.Mode = ViewAll
	n.view.SelectedSectionID = id
}

// SelectIndividual switches to individual mode focused on the given section.
func (n *Navigator) SelectIndividual(id string) {
	if report.IndexOf(n.sections, id) < 0 {
		return
	}
	n.view.Mode = ViewIndividual
	n.view.SelectedSectionID = id
}

// ToggleViewAll flips between the two modes. Turning ViewAll on preserves the
// selection as a scroll anchor; either direction backfills the first section
// when no selection exists.
func (n *Navigator) ToggleViewAll(on bool) {
	if on {
		n.view.Mode = ViewAll
	} else {
		n.view.Mode = ViewIndividual
	}
	if n.view.SelectedSectionID == "" || report.IndexOf(n.sections, n.view.SelectedSectionID) < 0 {
		n.view.SelectedSectionID = report.FirstID(n.sections)
	}
}

// Step moves the individual-mode selection to the adjacent section in
// document order, saturating at either end. A no-op in ViewAll.
func (n *Navigator) Step(dir StepDirection) {
	if n.view.Mode != ViewIndividual || len(n.sections) == 0 {
		return
	}
	idx := report.IndexOf(n.sections, n.view.SelectedSectionID)
	if idx < 0 {
		n.view.SelectedSectionID = report.FirstID(n.sections)
		return
	}
	next := idx + int(dir)
	if next < 0 || next >= len(n.sections) {
		return
	}
	n.view.SelectedSectionID = n.sections[next].ID
}

// View returns the current view state.
func (n *Navigator) View() ViewState {
	return n.view
}

// Selected returns the section the view state points at, if any.
func (n *Navigator) Selected() (report.Section, bool) {
	idx := report.IndexOf(n.sections, n.view.SelectedSectionID)
	if idx < 0 {
		return report.Section{}, false
	}
	return n.sections[idx], true
}
