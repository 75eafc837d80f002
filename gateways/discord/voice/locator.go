package voice

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Channel is the voice channel a user is connected to, with its human members.
type Channel struct {
	ID           string
	Name         string
	Participants []string
}

// Locator answers where a user is from the session's state cache.
type Locator struct {
	session *discordgo.Session
	log     *slog.Logger
}

func NewLocator(session *discordgo.Session, log *slog.Logger) *Locator {
	return &Locator{session: session, log: log}
}

// Locate returns the zero Channel when the user is not in voice.
func (l *Locator) Locate(guildID, userID string) (Channel, error) {
	vs, err := l.session.State.VoiceState(guildID, userID)
	if errors.Is(err, discordgo.ErrStateNotFound) || (err == nil && vs.ChannelID == "") {
		return Channel{}, nil
	}
	if err != nil {
		return Channel{}, fmt.Errorf("failed to read voice state: %w", err)
	}

	ch := Channel{ID: vs.ChannelID, Name: vs.ChannelID}
	if c, err := l.session.State.Channel(vs.ChannelID); err == nil {
		ch.Name = c.Name
	}

	guild, err := l.session.State.Guild(guildID)
	if err != nil {
		return Channel{}, fmt.Errorf("failed to read guild state: %w", err)
	}
	for _, state := range guild.VoiceStates {
		if state.ChannelID != vs.ChannelID {
			continue
		}
		bot, err := l.isBot(guildID, state)
		if err != nil {
			l.log.Warn("failed to resolve member",
				slog.String("user_id", state.UserID),
				slog.String("error", err.Error()))
		}
		if !bot {
			ch.Participants = append(ch.Participants, state.UserID)
		}
	}
	return ch, nil
}

func (l *Locator) isBot(guildID string, vs *discordgo.VoiceState) (bool, error) {
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User.Bot, nil
	}
	if m, err := l.session.State.Member(guildID, vs.UserID); err == nil && m.User != nil {
		return m.User.Bot, nil
	}
	m, err := l.session.GuildMember(guildID, vs.UserID)
	if err != nil {
		return false, err
	}
	return m.User != nil && m.User.Bot, nil
}
