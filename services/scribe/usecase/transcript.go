package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/xilidan/roboscribe/services/scribe/entity"
	"github.com/xilidan/roboscribe/services/scribe/storage"
)

func (u *usecase) SearchTranscripts(ctx context.Context, term string) (*SearchResult, error) {
	found, err := u.storage.SearchTranscripts(ctx, term)
	if err != nil {
		return nil, err
	}

	items := found
	if len(items) > SearchLimit {
		items = items[:SearchLimit]
	}

	return &SearchResult{
		Term:  term,
		Total: len(found),
		Items: items,
	}, nil
}

func (u *usecase) GetTranscript(ctx context.Context, id int64) (*entity.Transcript, error) {
	t, err := u.storage.GetTranscript(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrTranscriptNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	participants, err := u.storage.ListParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Participants = participants

	return t, nil
}
