package entity

import (
	"context"
	"time"
)

// Frame is one decoded chunk of interleaved stereo PCM from a single participant.
type Frame struct {
	ParticipantID string
	PCM           []int16
}

// AudioSink receives frames for the lifetime of one recording.
type AudioSink interface {
	Write(ctx context.Context, frame Frame) error
	WantsDecoded() bool
	Close() error
}

// VoiceConnection is the transport handle owned by an active recording.
type VoiceConnection interface {
	Listen(sink AudioSink) error
	StopListening()
	Disconnect(ctx context.Context) error
}

type SessionRecord struct {
	SessionID    string
	RecordingID  string
	ChannelID    string
	ChannelName  string
	Conn         VoiceConnection
	Sink         AudioSink
	Filename     string
	Participants []string
	StartedAt    time.Time
}

type SaveTranscriptRequest struct {
	Name         string
	Text         string
	Summary      string
	Participants []string
}

type Transcript struct {
	ID           int64
	Name         string
	Text         string
	Summary      string
	CreatedAt    time.Time
	Participants []string
}

type TranscriptSummary struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Day is the date prefix shown next to a transcript.
func (t TranscriptSummary) Day() string {
	return t.CreatedAt.Format(time.DateOnly)
}

func (t Transcript) Day() string {
	return t.CreatedAt.Format(time.DateOnly)
}
