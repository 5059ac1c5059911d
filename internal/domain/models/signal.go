package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type SignalKind string

const (
	SignalNumeric     SignalKind = "numeric"
	SignalCategorical SignalKind = "categorical"
)

// SignalValue is either a score in [-1,1] or a categorical label.
// Numeric values may still carry a label (e.g. a moat rating).
type SignalValue struct {
	Kind  SignalKind `json:"kind"`
	Score float64    `json:"score"`
	Label string     `json:"label,omitempty"`
}

func NumericValue(score float64, label string) SignalValue {
	return SignalValue{Kind: SignalNumeric, Score: clamp(score, -1, 1), Label: label}
}

func CategoricalValue(label string) SignalValue {
	return SignalValue{Kind: SignalCategorical, Label: label}
}

type Evidence struct {
	Summary string             `json:"summary"`
	Inputs  map[string]float64 `json:"inputs,omitempty"` // numeric inputs used by the producer
}

// Signal is one agent's typed, confidence-weighted opinion about a security.
type Signal struct {
	Producer   string      `json:"producer"`
	Value      SignalValue `json:"value"`
	Confidence float64     `json:"confidence"`
	Evidence   Evidence    `json:"evidence"`
	ProducedAt time.Time   `json:"produced_at"`
}

func (s Signal) IsNumeric() bool { return s.Value.Kind == SignalNumeric }

// Input returns a named evidence input.
func (s Signal) Input(name string) (float64, bool) {
	if s.Evidence.Inputs == nil {
		return 0, false
	}
	v, ok := s.Evidence.Inputs[name]
	return v, ok
}

// SignalSet keeps signals in insertion order, one per producer.
type SignalSet struct {
	items []Signal
	index map[string]int
}

func NewSignalSet() *SignalSet {
	return &SignalSet{index: make(map[string]int)}
}

// Add appends a signal; a second signal from the same producer is rejected.
func (s *SignalSet) Add(sig Signal) error {
	if sig.Producer == "" {
		return fmt.Errorf("signal producer is empty")
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[sig.Producer]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateProducer, sig.Producer)
	}
	s.index[sig.Producer] = len(s.items)
	s.items = append(s.items, sig)
	return nil
}

func (s *SignalSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

func (s *SignalSet) Get(producer string) (Signal, bool) {
	if s == nil {
		return Signal{}, false
	}
	i, ok := s.index[producer]
	if !ok {
		return Signal{}, false
	}
	return s.items[i], true
}

// Signals returns a copy in insertion order.
func (s *SignalSet) Signals() []Signal {
	if s == nil {
		return nil
	}
	out := make([]Signal, len(s.items))
	copy(out, s.items)
	return out
}

func (s *SignalSet) Producers() []string {
	out := make([]string, 0, s.Len())
	for _, sig := range s.Signals() {
		out = append(out, sig.Producer)
	}
	return out
}

func (s *SignalSet) MarshalJSON() ([]byte, error) {
	items := s.Signals()
	if items == nil {
		items = []Signal{}
	}
	return json.Marshal(items)
}

func (s *SignalSet) UnmarshalJSON(b []byte) error {
	var items []Signal
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	s.items = nil
	s.index = make(map[string]int, len(items))
	for _, it := range items {
		if err := s.Add(it); err != nil {
			return err
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 { return clamp(v, lo, hi) }
