package transcript

import (
	"testing"
	"time"

	"github.com/MrWong99/audioscribe/pkg/provider/stt"
)

func TestMerge_Empty(t *testing.T) {
	t.Parallel()

	got := Merge(nil, 5*time.Minute)
	if got.Text != "" || len(got.Segments) != 0 {
		t.Errorf("Merge(nil) = %+v, want zero result", got)
	}
}

func TestMerge_SingleChunkUnchanged(t *testing.T) {
	t.Parallel()

	in := stt.Result{
		Text:     "hello world",
		Segments: []stt.Segment{{Start: 0, End: 1.5, Text: "hello"}, {Start: 1.5, End: 3, Text: "world"}},
	}
	got := Merge([]stt.Result{in}, 5*time.Minute)
	if got.Text != in.Text {
		t.Errorf("Text = %q, want %q", got.Text, in.Text)
	}
	for i := range in.Segments {
		if got.Segments[i] != in.Segments[i] {
			t.Errorf("segment %d = %+v, want %+v", i, got.Segments[i], in.Segments[i])
		}
	}
}

func TestMerge_OffsetsByChunkIndex(t *testing.T) {
	t.Parallel()

	chunks := []stt.Result{
		{Text: "first", Segments: []stt.Segment{{Start: 0, End: 290, Text: "first"}}},
		{Text: "second", Segments: []stt.Segment{{Start: 1, End: 10, Text: "a"}, {Start: 12, End: 20, Text: "b"}}},
		{Text: "third", Segments: []stt.Segment{{Start: 0.5, End: 2, Text: "c"}}},
	}
	got := Merge(chunks, 300*time.Second)

	if got.Text != "first second third" {
		t.Errorf("Text = %q", got.Text)
	}
	want := []stt.Segment{
		{Start: 0, End: 290, Text: "first"},
		{Start: 301, End: 310, Text: "a"},
		{Start: 312, End: 320, Text: "b"},
		{Start: 600.5, End: 602, Text: "c"},
	}
	if len(got.Segments) != len(want) {
		t.Fatalf("segments = %d, want %d", len(got.Segments), len(want))
	}
	for i := range want {
		if got.Segments[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, got.Segments[i], want[i])
		}
	}
}

func TestMerge_SkipsEmptyText(t *testing.T) {
	t.Parallel()

	got := Merge([]stt.Result{{Text: ""}, {Text: "a"}, {Text: ""}, {Text: "b"}}, time.Minute)
	if got.Text != "a b" {
		t.Errorf("Text = %q, want %q", got.Text, "a b")
	}
}

func TestMerge_UsesGivenDuration(t *testing.T) {
	t.Parallel()

	chunks := []stt.Result{{}, {Segments: []stt.Segment{{Start: 1, End: 2}}}}
	got := Merge(chunks, 90*time.Second)
	if got.Segments[0].Start != 91 {
		t.Errorf("Start = %v, want 91", got.Segments[0].Start)
	}
}

func TestMerge_TextAssociative(t *testing.T) {
	t.Parallel()

	a := stt.Result{Text: "alpha"}
	b := stt.Result{Text: "beta"}
	c := stt.Result{Text: "gamma"}

	whole := Merge([]stt.Result{a, b, c}, time.Minute)
	ab := Merge([]stt.Result{a, b}, time.Minute)
	stepwise := Merge([]stt.Result{{Text: ab.Text}, c}, time.Minute)

	if whole.Text != stepwise.Text {
		t.Errorf("Merge([A,B,C]) = %q, Merge(Merge([A,B]),C) = %q", whole.Text, stepwise.Text)
	}
}
