package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/xilidan/roboscribe/services/scribe/audio"
)

const DefaultChunkLength = 50 * time.Second

// ErrNoSpeech is returned by a Recognizer that could not make out any words.
var ErrNoSpeech = errors.New("no speech detected")

// Recognizer turns one WAV payload into text.
type Recognizer interface {
	Recognize(ctx context.Context, wav []byte) (string, error)
}

type Option func(*Transcriber)

func WithChunkLength(d time.Duration) Option {
	return func(t *Transcriber) {
		if d > 0 {
			t.chunkLength = d
		}
	}
}

// WithTempDir sets where segment files are exported. Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(t *Transcriber) {
		t.tempDir = dir
	}
}

// Transcriber sends short recordings to the recognizer whole and cuts longer ones into
// fixed-length segments to stay under the service's duration limit. Words spanning a
// segment boundary may be lost.
type Transcriber struct {
	recognizer  Recognizer
	chunkLength time.Duration
	tempDir     string
	log         *slog.Logger
}

func New(recognizer Recognizer, log *slog.Logger, opts ...Option) *Transcriber {
	t := &Transcriber{
		recognizer:  recognizer,
		chunkLength: DefaultChunkLength,
		log:         log,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe returns the text spoken in the WAV file at path. ok is false when nothing
// usable was recognized; recognition failures are logged, never returned. err is only
// set when the file itself cannot be read.
func (t *Transcriber) Transcribe(ctx context.Context, path string) (text string, ok bool, err error) {
	info, err := audio.Inspect(path)
	if err != nil {
		return "", false, fmt.Errorf("failed to inspect recording: %w", err)
	}

	log := t.log.With(slog.String("path", path), slog.Duration("duration", info.Duration))

	if info.Duration <= t.chunkLength {
		log.Info("transcribing recording directly")
		data, err := os.ReadFile(path)
		if err != nil {
			return "", false, fmt.Errorf("failed to read recording: %w", err)
		}
		text := t.recognize(ctx, log, data)
		return text, text != "", nil
	}

	log.Info("transcribing recording in segments", slog.Duration("segment_length", t.chunkLength))

	var parts []string
	segments, err := audio.Split(ctx, path, t.chunkLength, t.tempDir, func(ctx context.Context, idx int, segment string) error {
		segLog := log.With(slog.Int("segment", idx))
		data, err := os.ReadFile(segment)
		if err != nil {
			segLog.Error("failed to read segment", slog.String("error", err.Error()))
			return nil
		}
		if text := t.recognize(ctx, segLog, data); text != "" {
			parts = append(parts, text)
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to split recording: %w", err)
	}

	log.Info("segments transcribed",
		slog.Int("segments", segments),
		slog.Int("segments_with_text", len(parts)))

	if len(parts) == 0 {
		return "", false, nil
	}
	return strings.Join(parts, " "), true, nil
}

func (t *Transcriber) recognize(ctx context.Context, log *slog.Logger, data []byte) string {
	text, err := t.recognizer.Recognize(ctx, data)
	switch {
	case errors.Is(err, ErrNoSpeech):
		log.Info("recognizer could not understand audio")
		return ""
	case err != nil:
		log.Error("recognition request failed", slog.String("error", err.Error()))
		return ""
	}
	return strings.TrimSpace(text)
}
