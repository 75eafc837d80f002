package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/xilidan/roboscribe/pkg/logger"
	"github.com/xilidan/roboscribe/services/scribe/entity"
)

var ErrAlreadyListening = errors.New("connection is already listening")

// Transport joins voice channels on a Discord session.
type Transport struct {
	session *discordgo.Session
	log     *slog.Logger
}

func NewTransport(session *discordgo.Session, log *slog.Logger) *Transport {
	return &Transport{session: session, log: logger.Component(log, "voice")}
}

func (t *Transport) Connect(ctx context.Context, guildID, channelID string) (entity.VoiceConnection, error) {
	log := t.log.With(slog.String("guild_id", guildID), slog.String("channel_id", channelID))
	log.Debug("joining voice channel")

	// Deafened connections receive no audio.
	vc, err := t.session.ChannelVoiceJoin(guildID, channelID, true, false)
	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}
	log.Info("joined voice channel")

	c := &Conn{
		vc:         vc,
		speakers:   newSpeakerMap(),
		newDecoder: opusDecoder,
		log:        log,
	}
	vc.AddHandler(func(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
		c.speakers.set(uint32(vs.SSRC), vs.UserID)
	})
	return c, nil
}

// Conn is one joined voice channel.
type Conn struct {
	vc         *discordgo.VoiceConnection
	speakers   *speakerMap
	newDecoder decoderFactory
	log        *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ entity.VoiceConnection = (*Conn)(nil)

func (c *Conn) Listen(sink entity.AudioSink) error {
	return c.listen(c.vc.OpusRecv, sink)
}

func (c *Conn) listen(packets <-chan *discordgo.Packet, sink entity.AudioSink) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return ErrAlreadyListening
	}
	if packets == nil {
		return errors.New("voice connection has no receive channel")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	r := newReceiver(packets, sink, c.speakers, c.newDecoder, c.log)
	go func() {
		defer close(c.done)
		r.run(ctx)
	}()

	c.log.Info("listening for audio")
	return nil
}

// StopListening stops the receive loop and waits for it to exit.
func (c *Conn) StopListening() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.log.Debug("stopped listening")
}

func (c *Conn) Disconnect(_ context.Context) error {
	c.StopListening()
	if err := c.vc.Disconnect(); err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	c.log.Info("left voice channel")
	return nil
}
