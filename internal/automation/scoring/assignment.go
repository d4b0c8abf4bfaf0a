// Package scoring ranks providers for unassigned appointments and rates
// low-stock items for reordering. All functions are deterministic.
package scoring

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Weights are empirical tuning values, not derived business rules.
type Weights struct {
	Base                   float64
	PreferredProvider      float64
	SpecializationMatch    float64
	SpecializationMismatch float64
	PerSameDayAppointment  float64
	PerOverlap             float64
	HeavyDayThreshold      int
	PerHeavyDayAppointment float64
	Continuity             float64
	// ContinuityWindow is how many recent closed visits are checked.
	ContinuityWindow int
}

// Default tunables.
const (
	DefaultBase                   = 100
	DefaultPreferredProvider      = 50
	DefaultSpecializationMatch    = 30
	DefaultSpecializationMismatch = 20
	DefaultPerSameDayAppointment  = 0.5
	DefaultPerOverlap             = 10
	DefaultHeavyDayThreshold      = 10
	DefaultPerHeavyDayAppointment = 0.5
	DefaultContinuity             = 20
	DefaultContinuityWindow       = 5
)

// DefaultWeights returns the default tunables.
func DefaultWeights() Weights {
	return Weights{
		Base:                   DefaultBase,
		PreferredProvider:      DefaultPreferredProvider,
		SpecializationMatch:    DefaultSpecializationMatch,
		SpecializationMismatch: DefaultSpecializationMismatch,
		PerSameDayAppointment:  DefaultPerSameDayAppointment,
		PerOverlap:             DefaultPerOverlap,
		HeavyDayThreshold:      DefaultHeavyDayThreshold,
		PerHeavyDayAppointment: DefaultPerHeavyDayAppointment,
		Continuity:             DefaultContinuity,
		ContinuityWindow:       DefaultContinuityWindow,
	}
}

// Slot is a half-open interval [Start, End).
type Slot struct {
	Start time.Time
	End   time.Time
}

// Overlaps is true only on real intersection; touching slots do not overlap.
func (s Slot) Overlaps(o Slot) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Candidate is an active provider with the bookings around the target day.
type Candidate struct {
	ID              uuid.UUID
	Name            string
	Specialization  string
	Specializations []string
	Bookings        []Slot
}

// Request is the appointment to place.
type Request struct {
	Slot                Slot
	PreferredProviderID *uuid.UUID
	Specialization      string
	// RecentProviderIDs lists providers of the patient's most recent closed
	// visits, newest first.
	RecentProviderIDs []uuid.UUID
}

// Score is a transient decision value; it is never persisted.
type Score struct {
	CandidateID uuid.UUID `json:"candidateId"`
	Value       float64   `json:"score"`
	Reasons     []string  `json:"reasons"`
}

// Scorer applies a set of weights.
type Scorer struct {
	w Weights
}

// NewScorer returns a scorer with the given weights.
func NewScorer(w Weights) Scorer {
	return Scorer{w: w}
}

// Score rates a single candidate for the request.
func (s Scorer) Score(req Request, c Candidate) Score {
	value := s.w.Base
	reasons := make([]string, 0, 4)

	if req.PreferredProviderID != nil && *req.PreferredProviderID == c.ID {
		value += s.w.PreferredProvider
		reasons = append(reasons, "preferred provider")
	}

	if wanted := strings.TrimSpace(req.Specialization); wanted != "" {
		if matchesSpecialization(c, wanted) {
			value += s.w.SpecializationMatch
			reasons = append(reasons, "specialization match")
		} else {
			value -= s.w.SpecializationMismatch
			reasons = append(reasons, "no specialization match")
		}
	}

	sameDay, overlaps := s.workload(req.Slot, c.Bookings)
	penalty := s.w.PerSameDayAppointment*float64(sameDay) + s.w.PerOverlap*float64(overlaps)
	if extra := sameDay - s.w.HeavyDayThreshold; extra > 0 {
		penalty += s.w.PerHeavyDayAppointment * float64(extra)
	}
	if penalty > 0 {
		value -= penalty
		reasons = append(reasons, fmt.Sprintf("workload %d same-day, %d overlapping", sameDay, overlaps))
	}

	if s.hasContinuity(req.RecentProviderIDs, c.ID) {
		value += s.w.Continuity
		reasons = append(reasons, "continuity of care")
	}

	return Score{CandidateID: c.ID, Value: math.Max(0, value), Reasons: reasons}
}

// Rank scores every candidate and orders them by descending score. Equal
// scores keep enumeration order, so the first-seen candidate wins ties.
func (s Scorer) Rank(req Request, candidates []Candidate) []Score {
	scores := make([]Score, 0, len(candidates))
	for _, c := range candidates {
		scores = append(scores, s.Score(req, c))
	}
	slices.SortStableFunc(scores, func(a, b Score) int {
		switch {
		case a.Value > b.Value:
			return -1
		case a.Value < b.Value:
			return 1
		default:
			return 0
		}
	})
	return scores
}

// Select returns the best candidate, or false when there are none.
func (s Scorer) Select(req Request, candidates []Candidate) (Score, bool) {
	ranked := s.Rank(req, candidates)
	if len(ranked) == 0 {
		return Score{}, false
	}
	return ranked[0], true
}

func (s Scorer) workload(target Slot, bookings []Slot) (sameDay, overlaps int) {
	loc := target.Start.Location()
	ty, tm, td := target.Start.Date()
	for _, b := range bookings {
		by, bm, bd := b.Start.In(loc).Date()
		if by == ty && bm == tm && bd == td {
			sameDay++
		}
		if b.Overlaps(target) {
			overlaps++
		}
	}
	return sameDay, overlaps
}

func (s Scorer) hasContinuity(recent []uuid.UUID, id uuid.UUID) bool {
	window := recent
	if s.w.ContinuityWindow > 0 && len(window) > s.w.ContinuityWindow {
		window = window[:s.w.ContinuityWindow]
	}
	return slices.Contains(window, id)
}

func matchesSpecialization(c Candidate, wanted string) bool {
	needle := strings.ToLower(wanted)
	if c.Specialization != "" && strings.Contains(strings.ToLower(c.Specialization), needle) {
		return true
	}
	for _, name := range c.Specializations {
		if strings.Contains(strings.ToLower(name), needle) {
			return true
		}
	}
	return false
}
