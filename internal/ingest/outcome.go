package ingest

import "encoding/json"

// Outcome is the settled result of an inference call: either Classified or
// Failed. It is consumed by exactly one persistence step.
type Outcome interface {
	isOutcome()
}

// Classified carries the inference body to be stored verbatim.
type Classified struct {
	Summary json.RawMessage
}

// Failed records why inference did not produce a summary.
type Failed struct {
	Reason error
}

func (Classified) isOutcome() {}
func (Failed) isOutcome()     {}
