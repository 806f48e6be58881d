// Package report turns raw intelligence-report documents into ordered,
// addressable sections.
package report

import (
	"strings"
)

// Section is one titled chunk of a report body. ID is derived from Title and
// is unique within a single report; Order is the position in the source
// document.
type Section struct {
	ID      string
	Title   string
	Content string
	Order   int
}

// Segment splits a markdown document into sections at level-1 and level-2
// headings. Body text is passed through unaltered apart from trimming blank
// lines at either end; text before the first heading is discarded. The
// function is total: any input, including empty, yields a (possibly empty)
// slice and never an error.
//
// Two headings that normalize to the same ID collide; the later section's
// title and content replace the earlier one's, at the earlier position. This
// mirrors keyed section storage, where the last writer wins on the value but
// the key keeps its first insertion slot.
func Segment(markdown string) []Section {
	lines := strings.Split(markdown, "\n")

	var sections []Section
	var current *Section
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Content = trimBlankLines(body)
		if at := IndexOf(sections, current.ID); at >= 0 {
			sections[at] = *current
		} else {
			sections = append(sections, *current)
		}
		current = nil
		body = nil
	}

	for _, line := range lines {
		title, isHeading := headingTitle(line)
		if !isHeading {
			if current != nil {
				body = append(body, line)
			}
			continue
		}
		flush()
		current = &Section{ID: NormalizeID(title), Title: title}
	}
	flush()

	for i := range sections {
		sections[i].Order = i
	}
	return sections
}

// headingTitle reports whether the line opens a new section and returns the
// heading's visible text with the marker stripped.
func headingTitle(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "## "):
		return strings.TrimSpace(line[3:]), true
	case strings.HasPrefix(line, "# "):
		return strings.TrimSpace(line[2:]), true
	default:
		return "", false
	}
}

// NormalizeID lowers the title and collapses every maximal run of characters
// outside [a-z0-9] into a single hyphen, trimming hyphens at either end.
func NormalizeID(title string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			pendingHyphen = b.Len() > 0
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func trimBlankLines(lines []string) string {
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

// FirstID returns the ID of the first section, or "" for an empty list.
func FirstID(sections []Section) string {
	if len(sections) == 0 {
		return ""
	}
	return sections[0].ID
}

// IndexOf returns the position of the section with the given ID, or -1.
func IndexOf(sections []Section, id string) int {
	for i, s := range sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}
