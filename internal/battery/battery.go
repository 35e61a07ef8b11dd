// Package battery tracks per-component battery readings for the earbuds and
// persists the last known non-zero level of each component.
//
// The earbuds report a level of 0 for a component that is not currently
// reporting (out of range, in the case with the lid closed). A zero never
// overwrites a cached reading; the cached value is shown instead.
package battery

import "fmt"

// Component identifies one battery-bearing part of the accessory
type Component int

const (
	Left Component = iota
	Right
	Case
)

// Components lists every component in report order
var Components = []Component{Left, Right, Case}

// String returns the component name (also the persisted key)
func (c Component) String() string {
	switch c {
	case Left:
		return "left"
	case Right:
		return "right"
	case Case:
		return "case"
	default:
		return fmt.Sprintf("Component(%d)", int(c))
	}
}

// Reading is a single component level
type Reading struct {
	Level    int  `yaml:"level" cbor:"1,keyasint"`
	Charging bool `yaml:"charging" cbor:"2,keyasint"`
	Present  bool `yaml:"-" cbor:"3,keyasint"`
}

func (r Reading) String() string {
	if !r.Present {
		return "-"
	}
	if r.Charging {
		return fmt.Sprintf("%d%% (charging)", r.Level)
	}
	return fmt.Sprintf("%d%%", r.Level)
}

// Status is the merged battery view of all components
type Status struct {
	Left  Reading `cbor:"1,keyasint"`
	Right Reading `cbor:"2,keyasint"`
	Case  Reading `cbor:"3,keyasint"`
}

// Get returns the reading for c
func (s Status) Get(c Component) Reading {
	switch c {
	case Left:
		return s.Left
	case Right:
		return s.Right
	default:
		return s.Case
	}
}

// set replaces the reading for c
func (s *Status) set(c Component, r Reading) {
	switch c {
	case Left:
		s.Left = r
	case Right:
		s.Right = r
	case Case:
		s.Case = r
	}
}

// Aggregate returns the headline earbud level: the lower of both earbuds when
// both are present, else whichever one is present. ok is false when neither is.
func (s Status) Aggregate() (level int, ok bool) {
	switch {
	case s.Left.Present && s.Right.Present:
		return min(s.Left.Level, s.Right.Level), true
	case s.Left.Present:
		return s.Left.Level, true
	case s.Right.Present:
		return s.Right.Level, true
	default:
		return 0, false
	}
}

// HasValidEarbud reports whether at least one earbud shows a level above zero
func (s Status) HasValidEarbud() bool {
	return (s.Left.Present && s.Left.Level > 0) || (s.Right.Present && s.Right.Level > 0)
}

func (s Status) String() string {
	return fmt.Sprintf("left=%s right=%s case=%s", s.Left, s.Right, s.Case)
}
