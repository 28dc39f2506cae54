package log

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events. Zero fields match everything.
type Filter struct {
	// RunID matches one client process.
	RunID string

	// Source matches the producing component.
	Source *Source

	// Category matches the event class.
	Category *Category

	// User matches the user email.
	User string

	// Since keeps events at or after this time.
	Since *time.Time

	// Until keeps events strictly before this time.
	Until *time.Time
}

// Match reports whether event passes every set criterion.
func (f Filter) Match(event Event) bool {
	switch {
	case f.RunID != "" && event.RunID != f.RunID:
		return false
	case f.Source != nil && event.Source != *f.Source:
		return false
	case f.Category != nil && event.Category != *f.Category:
		return false
	case f.User != "" && event.User != f.User:
		return false
	case f.Since != nil && event.Timestamp.Before(*f.Since):
		return false
	case f.Until != nil && !event.Timestamp.Before(*f.Until):
		return false
	}
	return true
}

// Reader streams events from a .glog file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader opens path and yields every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path and yields only events matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, decoder: NewDecoder(f), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF at the end of the file.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		if r.filter.Match(event) {
			return event, nil
		}
	}
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.file.Close()
}
