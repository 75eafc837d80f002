package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xilidan/roboscribe/services/scribe/audio"
	"github.com/xilidan/roboscribe/services/scribe/entity"
)

const defaultQueueSize = 256

var ErrClosed = errors.New("sink is closed")

type Option func(*Sink)

// WithQueueSize bounds the number of frames waiting for the consumer.
func WithQueueSize(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithFormat overrides the WAV layout written on Close.
func WithFormat(f audio.Format) Option {
	return func(s *Sink) {
		s.format = f
	}
}

// Sink mixes every participant's frames into one buffer, in delivery order, and writes
// it to a WAV file when closed. Frames travel over a bounded channel to a single consumer
// goroutine so the transport never touches the buffer directly.
type Sink struct {
	path      string
	format    audio.Format
	queueSize int
	log       *slog.Logger

	mu     sync.RWMutex
	closed bool
	frames chan entity.Frame
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error

	chunks  [][]int16
	samples int
	count   int
	heard   map[string]int
}

var _ entity.AudioSink = (*Sink)(nil)

func New(path string, log *slog.Logger, opts ...Option) *Sink {
	s := &Sink{
		path:      path,
		format:    audio.Recording,
		queueSize: defaultQueueSize,
		log:       log,
		heard:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.frames = make(chan entity.Frame, s.queueSize)
	s.done = make(chan struct{})
	go s.consume()

	return s
}

func (s *Sink) consume() {
	defer close(s.done)
	for frame := range s.frames {
		if len(frame.PCM) == 0 {
			continue
		}
		s.chunks = append(s.chunks, frame.PCM)
		s.samples += len(frame.PCM)
		s.count++
		s.heard[frame.ParticipantID]++
	}
}

// Write queues a frame. It blocks while the queue is full.
func (s *Sink) Write(ctx context.Context, frame entity.Frame) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	select {
	case s.frames <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WantsDecoded reports that the sink expects PCM rather than codec packets.
func (s *Sink) WantsDecoded() bool {
	return true
}

// Close drains the queue and writes the WAV file. Nothing is written when no audio
// arrived. Subsequent calls return the result of the first.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.frames)
		s.mu.Unlock()

		<-s.done
		s.closeErr = s.flush()
	})
	return s.closeErr
}

func (s *Sink) flush() error {
	if s.samples == 0 {
		s.log.Info("no audio collected, skipping file", slog.String("path", s.path))
		return nil
	}

	w, err := audio.Create(s.path, s.format)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.path, err)
	}
	for _, chunk := range s.chunks {
		if err := w.WriteSamples(chunk); err != nil {
			w.Close()
			return fmt.Errorf("failed to write %s: %w", s.path, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", s.path, err)
	}

	s.log.Info("recording written",
		slog.String("path", s.path),
		slog.Int("frames", s.count),
		slog.Int("samples", s.samples),
		slog.Int("speakers", len(s.heard)))
	s.chunks = nil
	return nil
}

// Frames is the number of non-empty frames collected. Only meaningful after Close.
func (s *Sink) Frames() int {
	<-s.done
	return s.count
}

// Speakers lists the participants heard at least once. Only meaningful after Close.
func (s *Sink) Speakers() []string {
	<-s.done
	ids := make([]string, 0, len(s.heard))
	for id := range s.heard {
		ids = append(ids, id)
	}
	return ids
}
