package llm

import (
	"bufio"
	"io"
	"strings"
)

// sseScanner reads server-sent events from a provider stream and yields the
// data payload of each event. Multi-line data fields are joined with newlines
// per the SSE spec; comment lines and unrecognised fields are ignored.
type sseScanner struct {
	scanner *bufio.Scanner
	err     error
}

func newSSEScanner(r io.Reader) *sseScanner {
	scanner := bufio.NewScanner(r)
	// Provider chunks carry a full JSON object per data line; allow lines
	// well beyond the bufio default.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseScanner{scanner: scanner}
}

// Next returns the data payload of the next event. ok is false once the
// stream is exhausted or a read error occurred; check Err to distinguish.
func (s *sseScanner) Next() (data string, ok bool) {
	var dataLines []string

	for s.scanner.Scan() {
		line := strings.TrimSuffix(s.scanner.Text(), "\r")

		if line == "" {
			// Blank line terminates the event.
			if len(dataLines) > 0 {
				return strings.Join(dataLines, "\n"), true
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			// Comment line, ignore.
			continue
		}
		if value, found := strings.CutPrefix(line, "data:"); found {
			// Remove only a single space after the colon, as per SSE spec.
			value = strings.TrimPrefix(value, " ")
			dataLines = append(dataLines, value)
		}
		// id:, event:, and unknown fields are irrelevant to completion
		// streams and are dropped.
	}

	s.err = s.scanner.Err()
	if len(dataLines) > 0 {
		return strings.Join(dataLines, "\n"), true
	}
	return "", false
}

// Err reports the first read error encountered, if any.
func (s *sseScanner) Err() error {
	return s.err
}
