package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/xilidan/roboscribe/pkg/logger"
	"github.com/xilidan/roboscribe/services/scribe/entity"
)

type transcriptModel struct {
	ID      int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Name    string  `gorm:"column:name"`
	Text    *string `gorm:"column:text"`
	Summary *string `gorm:"column:summary"`
	Date    string  `gorm:"column:date"`
}

func (transcriptModel) TableName() string { return "transcripts" }

type participantModel struct {
	TranscriptID  int64  `gorm:"column:transcript_id"`
	ParticipantID string `gorm:"column:participant_id"`
}

func (participantModel) TableName() string { return "participants" }

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseDate(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *storage) SaveTranscript(ctx context.Context, req *entity.SaveTranscriptRequest) (int64, error) {
	record := transcriptModel{
		Name:    req.Name,
		Text:    nullable(req.Text),
		Summary: nullable(req.Summary),
		Date:    s.now().UTC().Format(time.RFC3339Nano),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to insert transcript: %w", err)
		}
		if len(req.Participants) == 0 {
			return nil
		}

		rows := make([]participantModel, 0, len(req.Participants))
		for _, p := range req.Participants {
			rows = append(rows, participantModel{TranscriptID: record.ID, ParticipantID: p})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert participants: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.ErrorErr(ctx, "transcript save rolled back", err, slog.String("name", req.Name))
		return 0, err
	}

	s.log.InfoContext(ctx, "transcript saved",
		slog.Int64("transcript_id", record.ID),
		slog.String("name", record.Name),
		slog.Int("participants", len(req.Participants)))

	return record.ID, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchTranscripts matches term anywhere in the name, ignoring case, oldest first.
func (s *storage) SearchTranscripts(ctx context.Context, term string) ([]entity.TranscriptSummary, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"

	var records []transcriptModel
	err := s.db.WithContext(ctx).
		Select("id", "name", "date").
		Where(`LOWER(name) LIKE ? ESCAPE '\'`, pattern).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search transcripts: %w", err)
	}

	result := make([]entity.TranscriptSummary, 0, len(records))
	for _, r := range records {
		result = append(result, entity.TranscriptSummary{
			ID:        r.ID,
			Name:      r.Name,
			CreatedAt: parseDate(r.Date),
		})
	}
	return result, nil
}

func (s *storage) GetTranscript(ctx context.Context, id int64) (*entity.Transcript, error) {
	var record transcriptModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}

	return &entity.Transcript{
		ID:        record.ID,
		Name:      record.Name,
		Text:      deref(record.Text),
		Summary:   deref(record.Summary),
		CreatedAt: parseDate(record.Date),
	}, nil
}

func (s *storage) ListParticipants(ctx context.Context, id int64) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&participantModel{}).
		Where("transcript_id = ?", id).
		Order("participant_id").
		Pluck("participant_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return ids, nil
}
