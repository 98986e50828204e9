package extract

import (
	"fmt"
	"strings"
)

// TripRunStrategy maps a raw trip id to the trip run that groups its
// occurrences. Every agency format has its own id layout.
type TripRunStrategy interface {
	Run(tripID string) string
	Name() string
}

// FieldRun picks one field of a separator-delimited trip id, as in ZTM/ZKM
// ids like "6_7014283_RA_241205". Ids without that field are their own run.
type FieldRun struct {
	Separator string
	Index     int
}

func (f FieldRun) Run(tripID string) string {
	if f.Separator == "" || f.Index < 0 {
		return tripID
	}
	parts := strings.Split(tripID, f.Separator)
	if f.Index >= len(parts) || parts[f.Index] == "" {
		return tripID
	}
	return parts[f.Index]
}

func (f FieldRun) Name() string {
	return fmt.Sprintf("field(%q,%d)", f.Separator, f.Index)
}

// WholeTripID treats every trip id as its own run (SKM, MZKW).
type WholeTripID struct{}

func (WholeTripID) Run(tripID string) string { return tripID }

func (WholeTripID) Name() string { return "whole" }

// Strategy names accepted by NewTripRunStrategy.
const (
	StrategyField = "field"
	StrategyWhole = "whole"
)

// NewTripRunStrategy resolves a configured strategy name. An empty name selects
// WholeTripID.
func NewTripRunStrategy(name, separator string, index int) (TripRunStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyWhole:
		return WholeTripID{}, nil
	case StrategyField:
		if separator == "" {
			return nil, fmt.Errorf("trip run strategy %q needs a separator", name)
		}
		if index < 0 {
			return nil, fmt.Errorf("trip run strategy %q: negative field index %d", name, index)
		}
		return FieldRun{Separator: separator, Index: index}, nil
	default:
		return nil, fmt.Errorf("unknown trip run strategy %q", name)
	}
}
