package discord

import (
	"context"
	"reflect"
	"testing"

	"github.com/bwmarrin/discordgo"

	config "github.com/xilidan/roboscribe/config/scribe"
	"github.com/xilidan/roboscribe/pkg/logger"
)

func TestNewSessionSetsIntents(t *testing.T) {
	session, err := NewSession(config.DiscordConfig{Token: "token"})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if session.Identify.Intents != discordgo.IntentsGuilds|discordgo.IntentsGuildVoiceStates {
		t.Fatalf("intents = %v", session.Identify.Intents)
	}
	if session.Identify.Token != "Bot token" {
		t.Fatalf("token = %q", session.Identify.Token)
	}
}

func TestCommandOf(t *testing.T) {
	i := &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "g1",
		Member:  &discordgo.Member{User: &discordgo.User{ID: "u1"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "stop_recording",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "name", Type: discordgo.ApplicationCommandOptionString, Value: "Standup"},
			},
		},
	}

	cmd := commandOf(i)
	if cmd.Name != "stop_recording" || cmd.GuildID != "g1" || cmd.UserID != "u1" {
		t.Fatalf("commandOf = %+v", cmd)
	}
	if cmd.StringOption("name") != "Standup" {
		t.Fatalf("name option = %q", cmd.StringOption("name"))
	}

	dm := commandOf(&discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		User: &discordgo.User{ID: "u2"},
		Data: discordgo.ApplicationCommandInteractionData{Name: "transcript"},
	})
	if dm.UserID != "u2" || dm.GuildID != "" {
		t.Fatalf("commandOf(dm) = %+v", dm)
	}
}

func TestReadyFlag(t *testing.T) {
	s := New(config.DiscordConfig{}, nil, nil, logger.Discard())
	if s.Ready() {
		t.Fatalf("new server must not report ready")
	}
	s.onResumed(nil, &discordgo.Resumed{})
	if !s.Ready() {
		t.Fatalf("expected ready after resume")
	}
	s.onDisconnect(nil, &discordgo.Disconnect{})
	if s.Ready() {
		t.Fatalf("expected not ready after disconnect")
	}
}

type fakeGateway struct {
	calls []string
}

func (g *fakeGateway) AddHandler(interface{}) func() {
	return func() { g.calls = append(g.calls, "remove handler") }
}

func (g *fakeGateway) Open() error {
	g.calls = append(g.calls, "open")
	return nil
}

func (g *fakeGateway) Close() error {
	g.calls = append(g.calls, "close")
	return nil
}

func TestStartRunsBeforeCloseWhileOpen(t *testing.T) {
	gw := &fakeGateway{}
	var hookCtxErr error
	s := New(config.DiscordConfig{}, gw, nil, logger.Discard(),
		BeforeClose(func(ctx context.Context) {
			hookCtxErr = ctx.Err()
			gw.calls = append(gw.calls, "shutdown")
		}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := []string{"open", "remove handler", "remove handler", "remove handler", "remove handler", "shutdown", "close"}
	if !reflect.DeepEqual(gw.calls, want) {
		t.Fatalf("calls = %v, want %v", gw.calls, want)
	}
	if hookCtxErr != nil {
		t.Fatalf("shutdown hook got a cancelled context: %v", hookCtxErr)
	}
}
