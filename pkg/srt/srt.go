// Package srt formats and parses SubRip subtitle documents. Timestamps use
// millisecond precision written as HH:MM:SS.mmm.
package srt

import (
	"fmt"
	"strconv"
	"strings"
)

// Cue is one numbered subtitle entry.
type Cue struct {
	Text    string
	StartMS int64
	EndMS   int64
}

// Format renders cues as an SRT document: 1-based index, timestamp range,
// text, and a blank line after every entry including the last.
func Format(cues []Cue) string {
	var b strings.Builder
	for i, c := range cues {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('\n')
		b.WriteString(Timestamp(c.StartMS))
		b.WriteString(" --> ")
		b.WriteString(Timestamp(c.EndMS))
		b.WriteByte('\n')
		b.WriteString(c.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Timestamp renders milliseconds as HH:MM:SS.mmm.
func Timestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

// ParseTimestamp reads an HH:MM:SS.mmm timestamp back into milliseconds.
func ParseTimestamp(ts string) (int64, error) {
	var h, m, s, ms int64
	if _, err := fmt.Sscanf(ts, "%02d:%02d:%02d.%03d", &h, &m, &s, &ms); err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	return h*3600000 + m*60000 + s*1000 + ms, nil
}

// Parse reads an SRT document produced by Format back into cues.
func Parse(doc string) ([]Cue, error) {
	var cues []Cue
	blocks := strings.Split(strings.TrimRight(doc, "\n"), "\n\n")
	for _, block := range blocks {
		if strings.TrimSpace(block) == "" {
			continue
		}
		lines := strings.SplitN(block, "\n", 3)
		if len(lines) < 3 {
			return nil, fmt.Errorf("malformed cue block %q", block)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return nil, fmt.Errorf("cue index %q: %w", lines[0], err)
		}
		if idx != len(cues)+1 {
			return nil, fmt.Errorf("cue index %d out of order", idx)
		}
		start, end, err := parseRange(lines[1])
		if err != nil {
			return nil, err
		}
		cues = append(cues, Cue{Text: lines[2], StartMS: start, EndMS: end})
	}
	return cues, nil
}

func parseRange(line string) (int64, int64, error) {
	parts := strings.Split(line, " --> ")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed timestamp range %q", line)
	}
	start, err := ParseTimestamp(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := ParseTimestamp(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}
