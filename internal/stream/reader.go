// Package stream handles server-sent event framing in both directions:
// Reader decodes "data:" events from a backend response body, Writer encodes
// them onto an http.ResponseWriter.
package stream

import (
	"bufio"
	"io"
	"strings"
)

// DoneSentinel is the payload that terminates an event stream.
const DoneSentinel = "[DONE]"

// maxEventSize bounds a single line. bufio.Scanner's 64KB default is too
// small for tool-call payloads with large argument fragments.
const maxEventSize = 1 << 20

// Event is one dispatched server-sent event. Multiple "data:" lines inside
// one event are joined with "\n".
type Event struct {
	Name string
	ID   string
	Data string
}

// Reader decodes server-sent events from an io.Reader.
//
// Lines are accumulated until a blank line dispatches the event. Comment
// lines (starting with ':') and unknown fields are ignored. An event still
// pending at end of input is dispatched.
type Reader struct {
	scanner *bufio.Scanner
	done    bool
}

// NewReader wraps r. The caller keeps ownership of r and closes it.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &Reader{scanner: scanner}
}

// Next returns the next event. It returns io.EOF once the input is
// exhausted, or the underlying read error.
func (r *Reader) Next() (Event, error) {
	if r.done {
		return Event{}, io.EOF
	}

	var (
		ev      Event
		data    []string
		pending bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if pending {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "data":
			data = append(data, value)
			pending = true
		case "event":
			ev.Name = value
			pending = true
		case "id":
			ev.ID = value
			pending = true
		}
	}

	r.done = true
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	if pending {
		ev.Data = strings.Join(data, "\n")
		return ev, nil
	}
	return Event{}, io.EOF
}

// splitField splits "field: value" per the SSE grammar: a single space
// after the colon is dropped, a line without a colon is a field with an
// empty value.
func splitField(line string) (string, string) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return line, ""
	}
	value := line[i+1:]
	value = strings.TrimPrefix(value, " ")
	return line[:i], strings.TrimSuffix(value, "\r")
}

// IsDone reports whether data is the terminal sentinel.
func IsDone(data string) bool {
	return strings.TrimSpace(data) == DoneSentinel
}
