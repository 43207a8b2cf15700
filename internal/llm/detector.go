package llm

import (
	"errors"
	"log"
	"strings"
)

// ErrNoCandidate indicates the model produced nothing usable to decide on.
var ErrNoCandidate = errors.New("llm: no start-point candidate")

const defaultConfidence = 0.7

// Decision is the final start point adopted for a book.
type Decision struct {
	StartFile  string  `json:"start_file"`
	Anchor     string  `json:"anchor,omitempty"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
}

// Detector turns a model candidate into a final decision.
type Detector struct{}

// Decide adopts the candidate. The anchor is normalized: leading '#' runs are
// stripped and a blank anchor means top-of-file. A zero confidence falls back
// to the default.
func (Detector) Decide(c StartCandidate) (Decision, error) {
	if c.File == "" {
		return Decision{}, ErrNoCandidate
	}
	anchor := strings.TrimLeft(c.Anchor, "#")
	confidence := c.Confidence
	if confidence == 0 {
		confidence = defaultConfidence
	}
	log.Printf("start point decided: file=%s anchor=%q", c.File, anchor)
	return Decision{
		StartFile:  c.File,
		Anchor:     anchor,
		Confidence: confidence,
		Rationale:  c.Rationale,
	}, nil
}
