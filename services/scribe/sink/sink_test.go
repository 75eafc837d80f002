package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/go-audio/wav"

	"github.com/xilidan/roboscribe/pkg/logger"
	"github.com/xilidan/roboscribe/services/scribe/audio"
	"github.com/xilidan/roboscribe/services/scribe/entity"
)

func TestCloseWritesFramesInDeliveryOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.wav")
	s := New(path, logger.Discard(), WithQueueSize(2))

	ctx := context.Background()
	frames := []entity.Frame{
		{ParticipantID: "alice", PCM: []int16{1, 2, 3, 4}},
		{ParticipantID: "bob", PCM: []int16{5, 6}},
		{ParticipantID: "alice", PCM: nil},
		{ParticipantID: "bob", PCM: []int16{-7, -8}},
	}
	for _, f := range frames {
		if err := s.Write(ctx, f); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if s.Frames() != 3 {
		t.Fatalf("Frames = %d, want 3", s.Frames())
	}
	speakers := s.Speakers()
	sort.Strings(speakers)
	if len(speakers) != 2 || speakers[0] != "alice" || speakers[1] != "bob" {
		t.Fatalf("Speakers = %v", speakers)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer: %v", err)
	}
	if d.NumChans != 2 || d.SampleRate != 48000 || d.BitDepth != 16 {
		t.Fatalf("unexpected format: chans=%d rate=%d depth=%d", d.NumChans, d.SampleRate, d.BitDepth)
	}
	want := []int{1, 2, 3, 4, 5, 6, -7, -8}
	if len(buf.Data) != len(want) {
		t.Fatalf("got %d samples, want %d", len(buf.Data), len(want))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, buf.Data[i], want[i])
		}
	}
}

func TestCloseWithoutAudioWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.wav")
	s := New(path, logger.Discard())

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no file, stat err = %v", err)
	}
}

func TestWriteAfterClose(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "r.wav"), logger.Discard())
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	err := s.Write(context.Background(), entity.Frame{PCM: []int16{1, 1}})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("Write after Close err = %v, want ErrClosed", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "r.wav")
	s := New(path, logger.Discard())
	if err := s.Write(context.Background(), entity.Frame{PCM: []int16{1, 1}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	first := s.Close()
	if first == nil {
		t.Fatalf("expected write failure to propagate from Close")
	}
	if second := s.Close(); second != first {
		t.Fatalf("second Close = %v, want %v", second, first)
	}
}

func TestWriteRespectsContext(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "r.wav"), logger.Discard())
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// With a cancelled context Write may still win the race for a free slot, but it
	// must never block or report anything other than nil or the context error.
	for i := 0; i < 1000; i++ {
		if err := s.Write(ctx, entity.Frame{PCM: []int16{0, 0}}); err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestWantsDecoded(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "r.wav"), logger.Discard(), WithFormat(audio.Format{SampleRate: 8000, Channels: 1}))
	defer s.Close()
	if !s.WantsDecoded() {
		t.Fatalf("sink must ask for decoded audio")
	}
}
