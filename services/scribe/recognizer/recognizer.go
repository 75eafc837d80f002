package recognizer

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	config "github.com/xilidan/roboscribe/config/scribe"
	"github.com/xilidan/roboscribe/services/scribe/audio"
	"github.com/xilidan/roboscribe/services/scribe/transcribe"
)

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// Client sends WAV payloads to Google Cloud Speech-to-Text using the synchronous
// Recognize call, which accepts at most about a minute of audio.
type Client struct {
	client    *speech.Client
	recognize recognizeFunc
	language  string
	format    audio.Format
}

func New(ctx context.Context, cfg config.SpeechConfig) (*Client, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	c := &Client{
		client:   client,
		language: cfg.Language,
		format:   audio.Recording,
	}
	c.recognize = func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return client.Recognize(ctx, req)
	}
	return c, nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Recognize returns the best alternative of every result joined by spaces, or
// transcribe.ErrNoSpeech when the service returned nothing.
func (c *Client) Recognize(ctx context.Context, wav []byte) (string, error) {
	resp, err := c.recognize(ctx, c.request(wav))
	if err != nil {
		code := status.Code(err)
		if code == codes.Unknown {
			return "", fmt.Errorf("speech recognition failed: %w", err)
		}
		return "", fmt.Errorf("speech recognition failed (%s): %w", code, err)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", transcribe.ErrNoSpeech
	}
	return strings.Join(parts, " "), nil
}

func (c *Client) request(wav []byte) *speechpb.RecognizeRequest {
	return &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:          speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:   int32(c.format.SampleRate),
			AudioChannelCount: int32(c.format.Channels),
			LanguageCode:      c.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: wav},
		},
	}
}
