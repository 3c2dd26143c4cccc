// Package transcript turns per-chunk speech-to-text results into a single
// transcript on the source recording's timeline and annotates it with
// heuristic speaker labels.
//
// Both operations are pure functions over their inputs; neither performs I/O.
package transcript

import (
	"strings"
	"time"

	"github.com/MrWong99/audioscribe/pkg/provider/stt"
)

// Merge stitches chunk results, given in chunk order, into one result.
//
// Non-empty chunk texts are joined with a single space. Every segment of the
// chunk at index i is shifted by i × chunkDuration; chunkDuration must be the
// nominal duration the chunks were cut with, not a measured one. Segment
// order follows chunk order, then in-chunk order. Nothing is re-sorted or
// deduplicated across chunk boundaries.
func Merge(results []stt.Result, chunkDuration time.Duration) stt.Result {
	var (
		text     strings.Builder
		segments []stt.Segment
	)
	step := chunkDuration.Seconds()
	for i, r := range results {
		if r.Text != "" {
			if text.Len() > 0 {
				text.WriteByte(' ')
			}
			text.WriteString(r.Text)
		}
		offset := float64(i) * step
		for _, s := range r.Segments {
			segments = append(segments, stt.Segment{
				Start: s.Start + offset,
				End:   s.End + offset,
				Text:  s.Text,
			})
		}
	}
	return stt.Result{Text: text.String(), Segments: segments}
}
