package transcript

import (
	"fmt"

	"github.com/MrWong99/audioscribe/pkg/provider/stt"
)

// Default heuristic parameters.
const (
	DefaultGapThreshold = 2.0
	DefaultMaxSpeakers  = 5
)

// SpeakerSegment is a Segment annotated with a speaker label.
type SpeakerSegment struct {
	stt.Segment
	Speaker string `json:"speaker"`
}

// SpeakerOptions parameterises [AssignSpeakers].
type SpeakerOptions struct {
	// GapThreshold is the pause, in seconds, that must be exceeded before the
	// next segment is attributed to a new speaker. Zero selects
	// DefaultGapThreshold.
	GapThreshold float64

	// MaxSpeakers caps the label number. Once reached, every further switch
	// keeps the capped label. Zero selects DefaultMaxSpeakers.
	MaxSpeakers int
}

func (o SpeakerOptions) withDefaults() SpeakerOptions {
	if o.GapThreshold <= 0 {
		o.GapThreshold = DefaultGapThreshold
	}
	if o.MaxSpeakers <= 0 {
		o.MaxSpeakers = DefaultMaxSpeakers
	}
	return o
}

// SpeakerLabel returns the display label for the n-th speaker (1-based).
func SpeakerLabel(n int) string { return fmt.Sprintf("Speaker %d", n) }

// AssignSpeakers labels segments by pause length alone. The first segment is
// Speaker 1; each later segment whose start lies more than GapThreshold
// seconds after the previous segment's end advances the speaker number,
// clamped at MaxSpeakers. No acoustic signal is used.
//
// The result has the same length and order as segments.
func AssignSpeakers(segments []stt.Segment, opts SpeakerOptions) []SpeakerSegment {
	if len(segments) == 0 {
		return nil
	}
	opts = opts.withDefaults()

	out := make([]SpeakerSegment, len(segments))
	speaker := 1
	for i, s := range segments {
		if i > 0 && s.Start-segments[i-1].End > opts.GapThreshold {
			speaker = min(speaker+1, opts.MaxSpeakers)
		}
		out[i] = SpeakerSegment{Segment: s, Speaker: SpeakerLabel(speaker)}
	}
	return out
}
