// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

// Outcome is the non-error result of a submit or receive call on a codec
// or filter graph. Fatal conditions are reported through the error return.
type Outcome uint8

const (
	// Ready means the call made progress: input was accepted or output produced.
	Ready Outcome = iota
	// NotYet means the component needs the other side serviced first:
	// submit again after draining, or receive again after submitting.
	NotYet
	// End means the component is fully drained and will produce nothing more.
	End
)

func (o Outcome) String() string {
	switch o {
	case Ready:
		return "ready"
	case NotYet:
		return "not_yet"
	case End:
		return "end"
	default:
		return "unknown"
	}
}
