package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hraban/opus"

	"github.com/xilidan/roboscribe/pkg/logger"
	"github.com/xilidan/roboscribe/services/scribe/entity"
)

type recordingSink struct {
	mu     sync.Mutex
	frames []entity.Frame
	err    error
}

func (s *recordingSink) Write(_ context.Context, f entity.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *recordingSink) WantsDecoded() bool { return true }
func (s *recordingSink) Close() error       { return nil }

func (s *recordingSink) snapshot() []entity.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.Frame(nil), s.frames...)
}

// stubDecoder emits one stereo sample per packet whose value is the first payload byte.
type stubDecoder struct {
	decoded int
}

func (d *stubDecoder) Decode(data []byte, pcm []int16) (int, error) {
	if data[0] == 0 {
		return 0, errors.New("corrupt packet")
	}
	d.decoded++
	pcm[0], pcm[1] = int16(data[0]), int16(data[0])
	return 1, nil
}

func TestReceiverDecodesPerSSRC(t *testing.T) {
	var created []*stubDecoder
	factory := func() (decoder, error) {
		d := &stubDecoder{}
		created = append(created, d)
		return d, nil
	}

	packets := make(chan *discordgo.Packet, 8)
	speakers := newSpeakerMap()
	speakers.set(1, "alice")
	sink := &recordingSink{}
	r := newReceiver(packets, sink, speakers, factory, logger.Discard())

	packets <- &discordgo.Packet{SSRC: 1, Opus: []byte{10}}
	packets <- &discordgo.Packet{SSRC: 2, Opus: []byte{20}}
	packets <- &discordgo.Packet{SSRC: 1, Opus: []byte{0}}
	packets <- &discordgo.Packet{SSRC: 1, Opus: nil}
	packets <- &discordgo.Packet{SSRC: 1, Opus: []byte{30}}
	close(packets)

	r.run(context.Background())

	frames := sink.snapshot()
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	want := []struct {
		participant string
		value       int16
	}{
		{"alice", 10},
		{"ssrc:2", 20},
		{"alice", 30},
	}
	for i, w := range want {
		if frames[i].ParticipantID != w.participant || len(frames[i].PCM) != 2 || frames[i].PCM[0] != w.value {
			t.Fatalf("frame %d = %+v, want %s/%d", i, frames[i], w.participant, w.value)
		}
	}
	if len(created) != 2 {
		t.Fatalf("created %d decoders, want one per SSRC", len(created))
	}
	if created[0].decoded != 2 || created[1].decoded != 1 {
		t.Fatalf("decoder usage = %d, %d", created[0].decoded, created[1].decoded)
	}
}

func TestConnListenAndStop(t *testing.T) {
	packets := make(chan *discordgo.Packet)
	c := &Conn{
		speakers:   newSpeakerMap(),
		newDecoder: func() (decoder, error) { return &stubDecoder{}, nil },
		log:        logger.Discard(),
	}
	sink := &recordingSink{}

	if err := c.listen(packets, sink); err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := c.listen(packets, sink); !errors.Is(err, ErrAlreadyListening) {
		t.Fatalf("expected ErrAlreadyListening, got %v", err)
	}

	packets <- &discordgo.Packet{SSRC: 7, Opus: []byte{5}}

	stopped := make(chan struct{})
	go func() {
		c.StopListening()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatalf("StopListening did not return")
	}

	if got := sink.snapshot(); len(got) != 1 {
		t.Fatalf("got %d frames, want 1", len(got))
	}

	// Stopping twice is harmless and listening can resume afterwards.
	c.StopListening()
	if err := c.listen(packets, sink); err != nil {
		t.Fatalf("listen after stop: %v", err)
	}
	c.StopListening()
}

func TestListenWithoutReceiveChannel(t *testing.T) {
	c := &Conn{speakers: newSpeakerMap(), newDecoder: opusDecoder, log: logger.Discard()}
	if err := c.listen(nil, &recordingSink{}); err == nil {
		t.Fatalf("expected error without a receive channel")
	}
}

func TestOpusDecoder(t *testing.T) {
	enc, err := opus.NewEncoder(48000, 2, opus.AppVoIP)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	pcm := make([]int16, 960*2)
	for i := range pcm {
		pcm[i] = int16((i % 200) * 50)
	}
	data := make([]byte, 4000)
	n, err := enc.Encode(pcm, data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	packets := make(chan *discordgo.Packet, 1)
	packets <- &discordgo.Packet{SSRC: 9, Opus: data[:n]}
	close(packets)

	sink := &recordingSink{}
	newReceiver(packets, sink, newSpeakerMap(), opusDecoder, logger.Discard()).run(context.Background())

	frames := sink.snapshot()
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if len(frames[0].PCM) != 960*2 {
		t.Fatalf("decoded %d samples, want %d", len(frames[0].PCM), 960*2)
	}
}

func TestLocate(t *testing.T) {
	state := discordgo.NewState()
	guild := &discordgo.Guild{
		ID: "g1",
		Channels: []*discordgo.Channel{
			{ID: "c1", GuildID: "g1", Name: "General", Type: discordgo.ChannelTypeGuildVoice},
		},
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "g1", UserID: "u1", ChannelID: "c1", Member: &discordgo.Member{User: &discordgo.User{ID: "u1"}}},
			{GuildID: "g1", UserID: "u2", ChannelID: "c1", Member: &discordgo.Member{User: &discordgo.User{ID: "u2"}}},
			{GuildID: "g1", UserID: "bot", ChannelID: "c1", Member: &discordgo.Member{User: &discordgo.User{ID: "bot", Bot: true}}},
			{GuildID: "g1", UserID: "u3", ChannelID: "c2", Member: &discordgo.Member{User: &discordgo.User{ID: "u3"}}},
		},
	}
	if err := state.GuildAdd(guild); err != nil {
		t.Fatalf("GuildAdd: %v", err)
	}
	l := NewLocator(&discordgo.Session{State: state}, logger.Discard())

	ch, err := l.Locate("g1", "u1")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if ch.ID != "c1" || ch.Name != "General" {
		t.Fatalf("Locate = %+v", ch)
	}
	if len(ch.Participants) != 2 || ch.Participants[0] != "u1" || ch.Participants[1] != "u2" {
		t.Fatalf("participants = %v", ch.Participants)
	}

	none, err := l.Locate("g1", "nobody")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if none.ID != "" {
		t.Fatalf("expected no channel for a user outside voice, got %+v", none)
	}
}
