package handler

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/xilidan/roboscribe/gateways/discord/voice"
	"github.com/xilidan/roboscribe/services/scribe/usecase"
)

const (
	CommandStartRecording = "start_recording"
	CommandStopRecording  = "stop_recording"
	CommandTranscript     = "transcript"
	CommandViewID         = "view_id"

	optionName         = "name"
	optionSearchTerm   = "search_term"
	optionTranscriptID = "transcript_id"
)

// Commands lists the slash commands served by Handle.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        CommandStartRecording,
			Description: "Start recording voice channel",
		},
		{
			Name:        CommandStopRecording,
			Description: "Stop recording and process",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        optionName,
				Description: "Name for this transcript",
				Required:    true,
			}},
		},
		{
			Name:        CommandTranscript,
			Description: "Search for transcripts",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        optionSearchTerm,
				Description: "Search term to find transcripts",
				Required:    true,
			}},
		},
		{
			Name:        CommandViewID,
			Description: "View a transcript by ID",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        optionTranscriptID,
				Description: "ID of the transcript",
				Required:    true,
			}},
		},
	}
}

// Responder answers one interaction. Defer must be called before Edit or Ephemeral.
type Responder interface {
	Defer() error
	Edit(embed *discordgo.MessageEmbed) error
	Ephemeral(embed *discordgo.MessageEmbed) error
}

type Locator interface {
	Locate(guildID, userID string) (voice.Channel, error)
}

// Command is a slash command invocation stripped of transport details.
type Command struct {
	Name    string
	GuildID string
	UserID  string
	Options map[string]*discordgo.ApplicationCommandInteractionDataOption
}

func (c Command) StringOption(name string) string {
	if opt, ok := c.Options[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func (c Command) IntOption(name string) int64 {
	if opt, ok := c.Options[name]; ok {
		return opt.IntValue()
	}
	return 0
}

type Handler struct {
	usecase usecase.Usecase
	locator Locator
	log     *slog.Logger
}

func New(uc usecase.Usecase, locator Locator, log *slog.Logger) *Handler {
	return &Handler{usecase: uc, locator: locator, log: log}
}

func (h *Handler) Handle(ctx context.Context, cmd Command, resp Responder) {
	log := h.log.With(
		slog.String("command", cmd.Name),
		slog.String("guild_id", cmd.GuildID),
		slog.String("user_id", cmd.UserID))
	log.Info("command received")

	if err := resp.Defer(); err != nil {
		log.Error("failed to defer response", slog.String("error", err.Error()))
		return
	}

	var err error
	switch cmd.Name {
	case CommandStartRecording:
		err = h.startRecording(ctx, log, cmd, resp)
	case CommandStopRecording:
		err = h.stopRecording(ctx, log, cmd, resp)
	case CommandTranscript:
		err = h.searchTranscripts(ctx, cmd, resp)
	case CommandViewID:
		err = h.viewTranscript(ctx, cmd, resp)
	default:
		log.Warn("unknown command")
		return
	}
	if err != nil {
		log.Error("failed to send response", slog.String("error", err.Error()))
	}
}

func (h *Handler) fail(log *slog.Logger, cmd Command, err error) *discordgo.MessageEmbed {
	if usecase.StatusOf(err) == usecase.StatusInternal {
		log.Error("command failed", slog.String("error", err.Error()))
	} else {
		log.Info("command rejected", slog.String("reason", err.Error()))
	}
	return Failure(cmd.Name, err)
}

func (h *Handler) startRecording(ctx context.Context, log *slog.Logger, cmd Command, resp Responder) error {
	ch, err := h.locator.Locate(cmd.GuildID, cmd.UserID)
	if err != nil {
		return resp.Ephemeral(h.fail(log, cmd, err))
	}

	res, err := h.usecase.BeginRecording(ctx, &usecase.BeginRequest{
		GuildID:      cmd.GuildID,
		ChannelID:    ch.ID,
		ChannelName:  ch.Name,
		Participants: ch.Participants,
	})
	if err != nil {
		return resp.Ephemeral(h.fail(log, cmd, err))
	}
	return resp.Edit(RecordingStarted(res))
}

func (h *Handler) stopRecording(ctx context.Context, log *slog.Logger, cmd Command, resp Responder) error {
	started := false
	res, err := h.usecase.EndRecording(ctx, &usecase.EndRequest{
		GuildID: cmd.GuildID,
		Name:    cmd.StringOption(optionName),
	}, func(stage usecase.Stage) {
		started = true
		if err := resp.Edit(Progress(stage)); err != nil {
			log.Warn("failed to report progress", slog.String("stage", stage.String()), slog.String("error", err.Error()))
		}
	})
	if err != nil {
		embed := h.fail(log, cmd, err)
		// Once progress is showing, the failure replaces it in place.
		if started {
			return resp.Edit(embed)
		}
		return resp.Ephemeral(embed)
	}
	return resp.Edit(TranscriptSaved(res))
}

func (h *Handler) searchTranscripts(ctx context.Context, cmd Command, resp Responder) error {
	res, err := h.usecase.SearchTranscripts(ctx, cmd.StringOption(optionSearchTerm))
	if err != nil {
		return resp.Ephemeral(h.fail(h.log, cmd, err))
	}
	if res.Total == 0 {
		return resp.Ephemeral(SearchResults(res))
	}
	return resp.Edit(SearchResults(res))
}

func (h *Handler) viewTranscript(ctx context.Context, cmd Command, resp Responder) error {
	id := cmd.IntOption(optionTranscriptID)
	t, err := h.usecase.GetTranscript(ctx, id)
	if usecase.StatusOf(err) == usecase.StatusNotFound {
		return resp.Ephemeral(NotFound(id))
	}
	if err != nil {
		return resp.Ephemeral(h.fail(h.log, cmd, err))
	}
	return resp.Edit(TranscriptView(t))
}
