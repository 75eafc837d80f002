package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/hraban/opus"

	"github.com/xilidan/roboscribe/services/scribe/audio"
	"github.com/xilidan/roboscribe/services/scribe/entity"
)

// maxFrameSamples fits the longest opus frame (120 ms) at 48 kHz stereo.
const maxFrameSamples = 5760 * 2

type decoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

type decoderFactory func() (decoder, error)

func opusDecoder() (decoder, error) {
	dec, err := opus.NewDecoder(audio.Recording.SampleRate, audio.Recording.Channels)
	if err != nil {
		return nil, err
	}
	return dec, nil
}

// receiver decodes incoming packets with one decoder per SSRC and forwards the PCM to a
// sink, tagged with the speaking user when known.
type receiver struct {
	packets    <-chan *discordgo.Packet
	sink       entity.AudioSink
	newDecoder decoderFactory
	log        *slog.Logger

	decoders map[uint32]decoder
	speakers *speakerMap
	buf      []int16
}

func newReceiver(packets <-chan *discordgo.Packet, sink entity.AudioSink, speakers *speakerMap, newDecoder decoderFactory, log *slog.Logger) *receiver {
	return &receiver{
		packets:    packets,
		sink:       sink,
		newDecoder: newDecoder,
		log:        log,
		decoders:   make(map[uint32]decoder),
		speakers:   speakers,
		buf:        make([]int16, maxFrameSamples),
	}
}

// run returns when ctx is done or the packet channel closes.
func (r *receiver) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-r.packets:
			if !ok {
				r.log.Debug("packet channel closed")
				return
			}
			if err := r.handle(ctx, p); err != nil {
				if ctx.Err() != nil {
					return
				}
				r.log.Warn("dropping packet", slog.Uint64("ssrc", uint64(p.SSRC)), slog.String("error", err.Error()))
			}
		}
	}
}

func (r *receiver) handle(ctx context.Context, p *discordgo.Packet) error {
	if p == nil || len(p.Opus) == 0 {
		return nil
	}

	dec, ok := r.decoders[p.SSRC]
	if !ok {
		var err error
		dec, err = r.newDecoder()
		if err != nil {
			return fmt.Errorf("failed to create decoder: %w", err)
		}
		r.decoders[p.SSRC] = dec
	}

	n, err := dec.Decode(p.Opus, r.buf)
	if err != nil {
		return fmt.Errorf("failed to decode opus: %w", err)
	}

	pcm := make([]int16, n*audio.Recording.Channels)
	copy(pcm, r.buf)

	if !r.sink.WantsDecoded() {
		return nil
	}
	return r.sink.Write(ctx, entity.Frame{
		ParticipantID: r.speakers.lookup(p.SSRC),
		PCM:           pcm,
	})
}

// speakerMap resolves SSRCs to user ids from speaking updates.
type speakerMap struct {
	mu    sync.RWMutex
	users map[uint32]string
}

func newSpeakerMap() *speakerMap {
	return &speakerMap{users: make(map[uint32]string)}
}

func (m *speakerMap) set(ssrc uint32, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[ssrc] = userID
}

func (m *speakerMap) lookup(ssrc uint32) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.users[ssrc]; ok {
		return id
	}
	return "ssrc:" + strconv.FormatUint(uint64(ssrc), 10)
}
