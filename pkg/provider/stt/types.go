package stt

// Segment is a timed span of recognised text. Start and End are seconds from
// the beginning of the audio the segment was produced from.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration returns End - Start.
func (s Segment) Duration() float64 { return s.End - s.Start }

// Result is the output of a single transcription.
type Result struct {
	// Text is the full recognised text.
	Text string

	// Segments holds the timed spans that make up Text, ordered by Start. May
	// be empty when the provider recognised no speech.
	Segments []Segment
}
