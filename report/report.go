// Package report renders interview feedback as a plain-text document.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mockinterview/gateway"
)

const divider = "--------------------------------"

// Format lays out the report card. The layout is fixed; callers rely on the
// "Technical: 7/10" and "- item" lines.
func Format(fb gateway.Feedback, role string, date time.Time) string {
	var b strings.Builder
	b.WriteString("INTERVIEW REPORT CARD\n")
	fmt.Fprintf(&b, "Date: %s\n", date.Format("Jan 2, 2006"))
	fmt.Fprintf(&b, "Role: %s\n", role)
	b.WriteString(divider + "\n")
	b.WriteString("SCORES:\n")
	fmt.Fprintf(&b, "Technical: %s/10\n", Score(fb.TechnicalScore))
	fmt.Fprintf(&b, "Communication: %s/10\n", Score(fb.CommunicationScore))
	fmt.Fprintf(&b, "Overall: %s/10\n", Score(fb.OverallScore))
	b.WriteString(divider + "\n")
	b.WriteString("SUMMARY:\n")
	b.WriteString(fb.Summary + "\n")
	writeList(&b, "STRENGTHS:", fb.Strengths)
	writeList(&b, "WEAKNESSES:", fb.Weaknesses)
	writeList(&b, "MISTAKES TO AVOID:", fb.Mistakes)
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	b.WriteString(divider + "\n")
	b.WriteString(title + "\n")
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
}

// Score prints a score in its shortest form: 7, 7.5.
func Score(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Filename is the dated name a report is saved under.
func Filename(t time.Time) string {
	return "Report_" + t.UTC().Format("2006-01-02") + ".txt"
}

// DirSaver writes documents into Dir.
type DirSaver struct {
	Dir string
}

func (s DirSaver) Save(name string, data []byte) (string, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
