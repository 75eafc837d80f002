package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xilidan/roboscribe/pkg/logger"
	"github.com/xilidan/roboscribe/services/scribe/entity"
	"github.com/xilidan/roboscribe/services/scribe/session"
	"github.com/xilidan/roboscribe/services/scribe/sink"
)

func (u *usecase) BeginRecording(ctx context.Context, req *BeginRequest) (*BeginResult, error) {
	if req.ChannelID == "" {
		return nil, ErrNotInVoice
	}
	if u.registry.Active(req.GuildID) {
		return nil, ErrAlreadyRecording
	}

	log := u.log.With(slog.String("guild_id", req.GuildID), slog.String("channel_id", req.ChannelID))

	conn, err := u.transport.Connect(ctx, req.GuildID, req.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}

	recordingID := u.ids.Next().String()
	filename := filepath.Join(u.cfg.Dir, fmt.Sprintf("recording_%s_%s.wav", req.GuildID, recordingID))
	s := sink.New(filename, logger.Component(u.log, "sink"))

	if err := conn.Listen(s); err != nil {
		u.teardown(ctx, log, conn, s, filename)
		return nil, fmt.Errorf("failed to start listening: %w", err)
	}

	rec := &entity.SessionRecord{
		SessionID:    req.GuildID,
		RecordingID:  recordingID,
		ChannelID:    req.ChannelID,
		ChannelName:  req.ChannelName,
		Conn:         conn,
		Sink:         s,
		Filename:     filename,
		Participants: append([]string(nil), req.Participants...),
		StartedAt:    u.now(),
	}
	if err := u.registry.Begin(req.GuildID, rec); err != nil {
		// Another start for this guild won the race while we were connecting.
		conn.StopListening()
		u.teardown(ctx, log, conn, s, filename)
		if errors.Is(err, session.ErrAlreadyActive) {
			return nil, ErrAlreadyRecording
		}
		return nil, err
	}

	log.Info("recording started",
		slog.String("recording_id", recordingID),
		slog.String("file", filename),
		slog.Int("participants", len(rec.Participants)))

	return &BeginResult{
		RecordingID:  recordingID,
		ChannelName:  req.ChannelName,
		Participants: len(rec.Participants),
	}, nil
}

// teardown leaves the channel and discards whatever the sink flushed to filename.
func (u *usecase) teardown(ctx context.Context, log *slog.Logger, conn entity.VoiceConnection, s entity.AudioSink, filename string) {
	if err := conn.Disconnect(ctx); err != nil {
		log.Error("failed to disconnect", slog.String("error", err.Error()))
	}
	if err := s.Close(); err != nil {
		log.Error("failed to close sink", slog.String("error", err.Error()))
	}
	removeRecording(log, filename)
}

func (u *usecase) EndRecording(ctx context.Context, req *EndRequest, progress func(Stage)) (*EndResult, error) {
	if progress == nil {
		progress = func(Stage) {}
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrEmptyName
	}

	rec, err := u.registry.End(req.GuildID)
	if errors.Is(err, session.ErrNotActive) {
		return nil, ErrNoRecording
	}
	if err != nil {
		return nil, err
	}

	log := u.log.With(
		slog.String("guild_id", req.GuildID),
		slog.String("recording_id", rec.RecordingID),
		slog.String("file", rec.Filename))

	progress(StageProcessing)

	rec.Conn.StopListening()
	if err := rec.Conn.Disconnect(ctx); err != nil {
		log.Warn("failed to disconnect cleanly", slog.String("error", err.Error()))
	}
	if err := rec.Sink.Close(); err != nil {
		removeRecording(log, rec.Filename)
		return nil, fmt.Errorf("failed to write recording: %w", err)
	}

	info, err := os.Stat(rec.Filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrAudioMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat recording: %w", err)
	}
	if info.Size() < u.cfg.MinAudioBytes {
		log.Info("recording too small", slog.Int64("size", info.Size()))
		removeRecording(log, rec.Filename)
		return nil, ErrNoAudio
	}

	progress(StageTranscribing)

	text, ok, err := u.transcriber.Transcribe(ctx, rec.Filename)
	if err != nil {
		removeRecording(log, rec.Filename)
		return nil, fmt.Errorf("failed to transcribe recording: %w", err)
	}
	if !ok {
		removeRecording(log, rec.Filename)
		return nil, ErrNoSpeech
	}

	summary := u.summarizer.Summarize(ctx, text)

	id, err := u.storage.SaveTranscript(ctx, &entity.SaveTranscriptRequest{
		Name:         name,
		Text:         text,
		Summary:      summary,
		Participants: rec.Participants,
	})
	if err != nil {
		// The audio is kept so the transcript can be recovered by hand.
		return nil, fmt.Errorf("failed to save transcript: %w", err)
	}

	removeRecording(log, rec.Filename)
	log.Info("recording processed",
		slog.Int64("transcript_id", id),
		slog.Int("text_length", len(text)),
		slog.Duration("recorded_for", u.now().Sub(rec.StartedAt)))

	return &EndResult{
		ID:           id,
		Name:         name,
		Participants: rec.Participants,
		Text:         text,
		Summary:      summary,
	}, nil
}

// Shutdown leaves every voice channel and discards recordings still in progress.
func (u *usecase) Shutdown(ctx context.Context) {
	for _, rec := range u.registry.Drain() {
		log := u.log.With(slog.String("guild_id", rec.SessionID), slog.String("recording_id", rec.RecordingID))
		rec.Conn.StopListening()
		u.teardown(ctx, log, rec.Conn, rec.Sink, rec.Filename)
		log.Warn("recording discarded on shutdown")
	}
}

func removeRecording(log *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Error("failed to remove recording", slog.String("error", err.Error()))
	}
}
