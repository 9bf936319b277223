package drapto

import (
	"context"
	"testing"
)

func TestEncodeRequiresPaths(t *testing.T) {
	enc := NewEncoder(nil)
	if err := enc.Encode(context.Background(), "", "/tmp/out.mkv"); err == nil {
		t.Fatal("expected error for empty input")
	}
	if err := enc.Encode(context.Background(), "/tmp/in.mp4", "  "); err == nil {
		t.Fatal("expected error for empty output")
	}
}

func TestOutputName(t *testing.T) {
	cases := map[string]string{
		"/w/final/video_Padding_True_audio.mp4": "video_Padding_True_audio.mkv",
		"/w/final/.mp4":                         ".mp4.mkv",
		"clip":                                  "clip.mkv",
	}
	for in, want := range cases {
		if got := outputName(in); got != want {
			t.Fatalf("outputName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReporterForwardsMessages(t *testing.T) {
	var got []Progress
	rep := newProgressReporter(func(p Progress) { got = append(got, p) })
	rep.Warning("low disk")
	rep.OperationComplete("done")
	rep.EncodingStarted(1200)

	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Stage != "warning" || got[0].Message != "low disk" {
		t.Fatalf("unexpected warning event: %+v", got[0])
	}
	if got[1].Percent != 100 {
		t.Fatalf("expected completion at 100%%, got %+v", got[1])
	}
	if got[2].Stage != "encoding" {
		t.Fatalf("unexpected encoding event: %+v", got[2])
	}
}
