// Package planner decides which time ranges of a source video make up a
// highlight clip. It does not touch media; it only maps a source duration and
// a mode to an ordered list of segments.
package planner

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
)

const (
	// Short mode picks one segment whose length is drawn from this range (inclusive).
	ShortMinSeconds = 30
	ShortMaxSeconds = 60

	// Long mode targets this fraction of the source duration.
	LongTargetRatio = 0.2

	// Remaining long-mode budget below this is dropped instead of emitted.
	MinSegmentSeconds = 10.0
)

// LongSegmentChoices are the candidate segment lengths for long mode, in seconds.
var LongSegmentChoices = []float64{30, 60, 120, 180, 300}

var (
	ErrInvalidMode = errors.New("mode must be either \"short\" or \"long\"")
	ErrEmptySource = errors.New("source duration must be a positive number of seconds")
)

type Mode string

const (
	ModeShort Mode = "short"
	ModeLong  Mode = "long"
)

// ParseMode accepts exactly "short" or "long".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeShort:
		return ModeShort, nil
	case ModeLong:
		return ModeLong, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidMode, s)
	}
}

func (m Mode) Valid() bool {
	return m == ModeShort || m == ModeLong
}

// Segment is a [Start, End) range of second offsets into the source.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s Segment) Duration() float64 {
	return s.End - s.Start
}

func (s Segment) String() string {
	return strconv.FormatFloat(s.Start, 'f', 3, 64) + "-" + strconv.FormatFloat(s.End, 'f', 3, 64)
}

// Plan is the extraction order of segments. It is not necessarily
// chronological and, in long mode, segments may overlap.
type Plan []Segment

func (p Plan) TotalDuration() float64 {
	var total float64
	for _, s := range p {
		total += s.Duration()
	}
	return total
}

// RandomSource is the randomness the planner draws from. *rand.Rand from
// math/rand/v2 satisfies it.
type RandomSource interface {
	// IntN returns a value in [0, n).
	IntN(n int) int
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
}

// globalSource uses the package-level math/rand/v2 functions, which are
// safe for concurrent use.
type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }
func (globalSource) Float64() float64 { return rand.Float64() }

type Planner struct {
	rnd RandomSource
}

// New returns a Planner drawing from rnd. A nil rnd uses the shared
// math/rand/v2 generator.
func New(rnd RandomSource) *Planner {
	if rnd == nil {
		rnd = globalSource{}
	}
	return &Planner{rnd: rnd}
}

// Plan computes the segments for mode over a source of the given duration.
// Long mode may legitimately return an empty plan when 20% of the source is
// under MinSegmentSeconds.
func (p *Planner) Plan(mode Mode, sourceDuration float64) (Plan, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMode, string(mode))
	}
	if !(sourceDuration > 0) || math.IsInf(sourceDuration, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrEmptySource, sourceDuration)
	}

	if mode == ModeShort {
		return p.planShort(sourceDuration), nil
	}
	return p.planLong(sourceDuration), nil
}

func (p *Planner) planShort(sourceDuration float64) Plan {
	length := float64(ShortMinSeconds + p.rnd.IntN(ShortMaxSeconds-ShortMinSeconds+1))
	if length >= sourceDuration {
		return Plan{{Start: 0, End: sourceDuration}}
	}
	start := p.rnd.Float64() * (sourceDuration - length)
	return Plan{{Start: start, End: start + length}}
}

// planLong terminates because every appended segment adds at least
// MinSegmentSeconds to the accumulator.
func (p *Planner) planLong(sourceDuration float64) Plan {
	target := sourceDuration * LongTargetRatio
	var plan Plan
	var accumulated float64

	for accumulated < target {
		length := LongSegmentChoices[p.rnd.IntN(len(LongSegmentChoices))]
		if accumulated+length > target {
			length = target - accumulated
		}
		if length < MinSegmentSeconds {
			break
		}
		start := p.rnd.Float64() * (sourceDuration - length)
		plan = append(plan, Segment{Start: start, End: start + length})
		accumulated += length
	}
	return plan
}
