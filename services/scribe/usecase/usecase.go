package usecase

import (
	"context"
	"log/slog"
	"time"

	config "github.com/xilidan/roboscribe/config/scribe"
	"github.com/xilidan/roboscribe/pkg/gen"
	"github.com/xilidan/roboscribe/services/scribe/entity"
	"github.com/xilidan/roboscribe/services/scribe/session"
	"github.com/xilidan/roboscribe/services/scribe/storage"
)

// SearchLimit caps the number of search results returned to callers.
const SearchLimit = 10

type Usecase interface {
	BeginRecording(ctx context.Context, req *BeginRequest) (*BeginResult, error)
	EndRecording(ctx context.Context, req *EndRequest, progress func(Stage)) (*EndResult, error)
	SearchTranscripts(ctx context.Context, term string) (*SearchResult, error)
	GetTranscript(ctx context.Context, id int64) (*entity.Transcript, error)
	Shutdown(ctx context.Context)
}

// Transport joins voice channels.
type Transport interface {
	Connect(ctx context.Context, guildID, channelID string) (entity.VoiceConnection, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, path string) (text string, ok bool, err error)
}

type Summarizer interface {
	Summarize(ctx context.Context, transcript string) string
}

// BeginRequest carries the caller's voice channel. Participants are the non-bot members
// present when recording starts.
type BeginRequest struct {
	GuildID      string
	ChannelID    string
	ChannelName  string
	Participants []string
}

type BeginResult struct {
	RecordingID  string
	ChannelName  string
	Participants int
}

type EndRequest struct {
	GuildID string
	Name    string
}

type EndResult struct {
	ID           int64
	Name         string
	Participants []string
	Text         string
	Summary      string
}

type SearchResult struct {
	Term  string
	Total int
	Items []entity.TranscriptSummary
}

// Stage marks progress through EndRecording.
type Stage int

const (
	StageProcessing Stage = iota
	StageTranscribing
)

func (s Stage) String() string {
	switch s {
	case StageProcessing:
		return "processing"
	case StageTranscribing:
		return "transcribing"
	default:
		return "unknown"
	}
}

type usecase struct {
	registry    *session.Registry
	transport   Transport
	transcriber Transcriber
	summarizer  Summarizer
	storage     storage.Storage
	cfg         config.RecordingConfig
	ids         gen.UUIDGenerator
	now         func() time.Time
	log         *slog.Logger
}

type Deps struct {
	Registry    *session.Registry
	Transport   Transport
	Transcriber Transcriber
	Summarizer  Summarizer
	Storage     storage.Storage
	IDs         gen.UUIDGenerator
}

func New(deps Deps, cfg config.RecordingConfig, log *slog.Logger) Usecase {
	ids := deps.IDs
	if ids == nil {
		ids = gen.UUID()
	}
	return &usecase{
		registry:    deps.Registry,
		transport:   deps.Transport,
		transcriber: deps.Transcriber,
		summarizer:  deps.Summarizer,
		storage:     deps.Storage,
		cfg:         cfg,
		ids:         ids,
		now:         time.Now,
		log:         log,
	}
}
