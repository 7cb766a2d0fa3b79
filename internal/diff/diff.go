// Package diff compares two versions of a room report line by line.
package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type Line struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
}

const (
	LineContext = "context"
	LineAdded   = "added"
	LineRemoved = "removed"
)

// Delta is the line difference between a previous and a new report.
type Delta struct {
	Lines   []Line `json:"lines"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
}

func (d Delta) Empty() bool {
	return d.Added == 0 && d.Removed == 0
}

// Lines diffs before and after by line.
func Lines(before, after string) Delta {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var delta Delta
	oldLine := 1
	newLine := 1
	for _, d := range diffs {
		chunkLines := strings.Split(d.Text, "\n")
		if len(chunkLines) > 0 && chunkLines[len(chunkLines)-1] == "" {
			chunkLines = chunkLines[:len(chunkLines)-1]
		}
		for _, line := range chunkLines {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				delta.Lines = append(delta.Lines, Line{Type: LineContext, Text: line, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				delta.Lines = append(delta.Lines, Line{Type: LineRemoved, Text: line, OldLine: oldLine})
				delta.Removed++
				oldLine++
			case diffmatchpatch.DiffInsert:
				delta.Lines = append(delta.Lines, Line{Type: LineAdded, Text: line, NewLine: newLine})
				delta.Added++
				newLine++
			}
		}
	}
	return delta
}

// Changes renders only the added and removed lines, prefixed with "+ " and
// "- ".
func (d Delta) Changes() string {
	var b strings.Builder
	for _, line := range d.Lines {
		switch line.Type {
		case LineAdded:
			b.WriteString("+ " + line.Text + "\n")
		case LineRemoved:
			b.WriteString("- " + line.Text + "\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}
