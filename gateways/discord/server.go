package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	config "github.com/xilidan/roboscribe/config/scribe"
	"github.com/xilidan/roboscribe/gateways/discord/handler"
	"github.com/xilidan/roboscribe/pkg/logger"
)

const intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

// NewSession prepares an unopened bot session.
func NewSession(cfg config.DiscordConfig) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = intents
	return session, nil
}

// gateway is the part of *discordgo.Session the server drives.
type gateway interface {
	AddHandler(fn interface{}) func()
	Open() error
	Close() error
}

type Option func(*Server)

// BeforeClose registers fn to run once ctx is done, while the gateway
// connection is still open. Voice connections must be left here:
// discordgo cannot disconnect them after the session is closed.
func BeforeClose(fn func(ctx context.Context)) Option {
	return func(s *Server) {
		s.beforeClose = append(s.beforeClose, fn)
	}
}

type Server struct {
	cfg     config.DiscordConfig
	session gateway
	handler *handler.Handler
	log     *slog.Logger

	beforeClose []func(ctx context.Context)

	ready    atomic.Bool
	mu       sync.Mutex
	baseCtx  context.Context
	handlers []func()
}

func New(cfg config.DiscordConfig, session gateway, h *handler.Handler, log *slog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		session: session,
		handler: h,
		log:     logger.Component(log, "discord"),
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ready reports whether the gateway connection is up.
func (s *Server) Ready() bool {
	return s.ready.Load()
}

// Start connects to Discord and serves commands until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.handlers = append(s.handlers,
		s.session.AddHandler(s.onReady),
		s.session.AddHandler(s.onResumed),
		s.session.AddHandler(s.onDisconnect),
		s.session.AddHandler(s.onInteraction),
	)
	s.mu.Unlock()

	s.log.Info("opening discord session")
	if err := s.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	<-ctx.Done()
	s.log.Info("closing discord session")

	s.mu.Lock()
	for _, remove := range s.handlers {
		remove()
	}
	s.handlers = nil
	s.mu.Unlock()

	for _, fn := range s.beforeClose {
		fn(context.WithoutCancel(ctx))
	}

	s.ready.Store(false)
	if err := s.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	s.log.Info("discord session closed")
	return nil
}

func (s *Server) onReady(session *discordgo.Session, r *discordgo.Ready) {
	s.log.Info("bot logged in",
		slog.String("user", r.User.String()),
		slog.Int("guilds", len(r.Guilds)))

	registered, err := session.ApplicationCommandBulkOverwrite(r.User.ID, s.cfg.GuildID, handler.Commands())
	if err != nil {
		s.log.Error("failed to register commands", slog.String("error", err.Error()))
	} else {
		s.log.Info("commands registered",
			slog.Int("count", len(registered)),
			slog.String("guild_id", s.cfg.GuildID))
	}

	s.ready.Store(true)
}

func (s *Server) onResumed(*discordgo.Session, *discordgo.Resumed) {
	s.log.Info("gateway session resumed")
	s.ready.Store(true)
}

func (s *Server) onDisconnect(*discordgo.Session, *discordgo.Disconnect) {
	s.log.Warn("gateway disconnected")
	s.ready.Store(false)
}

func (s *Server) onInteraction(session *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	s.handler.Handle(ctx, commandOf(i.Interaction), &responder{session: session, interaction: i.Interaction})
}

func commandOf(i *discordgo.Interaction) handler.Command {
	data := i.ApplicationCommandData()
	cmd := handler.Command{
		Name:    data.Name,
		GuildID: i.GuildID,
		Options: make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options)),
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		cmd.UserID = i.Member.User.ID
	case i.User != nil:
		cmd.UserID = i.User.ID
	}
	for _, opt := range data.Options {
		cmd.Options[opt.Name] = opt
	}
	return cmd
}

type responder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
}

func (r *responder) Defer() error {
	return r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func (r *responder) Edit(embed *discordgo.MessageEmbed) error {
	_, err := r.session.InteractionResponseEdit(r.interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	})
	return err
}

// Ephemeral replaces the public deferred reply with one only the caller sees.
func (r *responder) Ephemeral(embed *discordgo.MessageEmbed) error {
	if err := r.session.InteractionResponseDelete(r.interaction); err != nil {
		return err
	}
	_, err := r.session.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
		Flags:  discordgo.MessageFlagsEphemeral,
	})
	return err
}
