// Package labels inventories the accessible labels in a page's HTML, using
// the same sources as the in-page label matcher.
package labels

import (
	"io"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Source names where a label came from.
type Source string

const (
	SourceAriaLabel      Source = "aria-label"
	SourceAriaLabelledBy Source = "aria-labelledby"
	SourceLabelElement   Source = "label"
	SourceTitle          Source = "title"
)

// Entry is one labelled element.
type Entry struct {
	Label  string
	Source Source
	Tag    string
	ID     string
}

// Parse reads HTML and returns every labelled element in document order,
// grouped by source.
func Parse(r io.Reader) ([]Entry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	byID := map[string]*goquery.Selection{}
	doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		if id, _ := s.Attr("id"); id != "" {
			if _, dup := byID[id]; !dup {
				byID[id] = s
			}
		}
	})

	var out []Entry
	add := func(s *goquery.Selection, label string, src Source) {
		label = Normalize(label)
		if label == "" || s == nil || s.Length() == 0 {
			return
		}
		id, _ := s.Attr("id")
		out = append(out, Entry{Label: label, Source: src, Tag: goquery.NodeName(s), ID: id})
	}

	doc.Find("[aria-label]").Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("aria-label")
		add(s, v, SourceAriaLabel)
	})
	doc.Find("[aria-labelledby]").Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("aria-labelledby")
		var parts []string
		for _, ref := range strings.Fields(v) {
			if target, ok := byID[ref]; ok {
				parts = append(parts, target.Text())
			}
		}
		add(s, strings.Join(parts, " "), SourceAriaLabelledBy)
	})
	doc.Find("label").Each(func(_ int, s *goquery.Selection) {
		add(labelControl(s, byID), s.Text(), SourceLabelElement)
	})
	doc.Find("[title]").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "title" {
			return
		}
		v, _ := s.Attr("title")
		add(s, v, SourceTitle)
	})
	return out, nil
}

// labelControl resolves the form control a <label> labels: the element
// named by its for attribute, else the first nested control.
func labelControl(s *goquery.Selection, byID map[string]*goquery.Selection) *goquery.Selection {
	if forID, ok := s.Attr("for"); ok {
		return byID[forID]
	}
	ctl := s.Find("input, select, textarea, button, meter, output, progress").First()
	if ctl.Length() == 0 {
		return nil
	}
	return ctl
}

// Normalize collapses runs of whitespace and trims, matching how labels are
// compared in the page.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Count returns how many entries carry exactly label. Elements with an id
// are counted once even if several sources supply the same label.
func Count(entries []Entry, label string) int {
	want := Normalize(label)
	seen := map[string]bool{}
	n := 0
	for _, e := range entries {
		if e.Label != want {
			continue
		}
		if e.ID != "" {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
		}
		n++
	}
	return n
}

// Distinct returns the sorted set of labels.
func Distinct(entries []Entry) []string {
	set := map[string]struct{}{}
	for _, e := range entries {
		set[e.Label] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
