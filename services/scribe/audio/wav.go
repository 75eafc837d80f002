package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth  = 16
	pcmFormat = 1
)

// Format describes the PCM layout of a WAV file.
type Format struct {
	SampleRate int
	Channels   int
}

// Recording is the fixed layout produced by the voice sink.
var Recording = Format{SampleRate: 48000, Channels: 2}

var ErrInvalidWAV = errors.New("not a valid wav file")

type Info struct {
	Format   Format
	Duration time.Duration
	Size     int64
}

// Inspect reads the header of the WAV file at path and computes its duration from the
// size of the data chunk.
func Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	d, err := openDecoder(f)
	if err != nil {
		return Info{}, fmt.Errorf("%s: %w", path, err)
	}

	bytesPerSecond := int64(d.SampleRate) * int64(d.NumChans) * int64(d.BitDepth/8)
	if bytesPerSecond == 0 {
		return Info{}, fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}

	return Info{
		Format:   Format{SampleRate: int(d.SampleRate), Channels: int(d.NumChans)},
		Duration: time.Duration(float64(d.PCMSize) / float64(bytesPerSecond) * float64(time.Second)),
		Size:     stat.Size(),
	}, nil
}

func openDecoder(r io.ReadSeeker) (*wav.Decoder, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	d = wav.NewDecoder(r)
	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to locate pcm data: %w", err)
	}
	if d.BitDepth != bitDepth {
		return nil, fmt.Errorf("unsupported bit depth %d: %w", d.BitDepth, ErrInvalidWAV)
	}
	return d, nil
}

// Writer streams 16-bit PCM samples into a WAV file.
type Writer struct {
	f   *os.File
	enc *wav.Encoder
	buf *goaudio.IntBuffer
}

func Create(path string, format Format) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return newWriter(f, format), nil
}

func newWriter(f *os.File, format Format) *Writer {
	return &Writer{
		f:   f,
		enc: wav.NewEncoder(f, format.SampleRate, bitDepth, format.Channels, pcmFormat),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
			SourceBitDepth: bitDepth,
		},
	}
}

func (w *Writer) WriteSamples(pcm []int16) error {
	if len(pcm) == 0 {
		return nil
	}

	data := w.buf.Data[:0]
	for _, s := range pcm {
		data = append(data, int(s))
	}
	w.buf.Data = data

	return w.writeBuffer()
}

func (w *Writer) writeInts(samples []int) error {
	if len(samples) == 0 {
		return nil
	}
	w.buf.Data = samples
	return w.writeBuffer()
}

func (w *Writer) writeBuffer() error {
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("failed to encode samples: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	encErr := w.enc.Close()
	fileErr := w.f.Close()
	if encErr != nil {
		return fmt.Errorf("failed to finalize wav header: %w", encErr)
	}
	return fileErr
}

// SegmentFunc handles one exported segment. The file at path is removed once it returns.
type SegmentFunc func(ctx context.Context, index int, path string) error

// Split cuts the WAV at path into consecutive, non-overlapping segments of the given
// length (the last one may be shorter). Each segment is written to a temporary file in
// dir, handed to fn and deleted afterwards, whatever fn returned. It reports how many
// segments were produced.
func Split(ctx context.Context, path string, length time.Duration, dir string, fn SegmentFunc) (int, error) {
	if length <= 0 {
		return 0, fmt.Errorf("segment length must be positive, got %s", length)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	d, err := openDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}

	format := Format{SampleRate: int(d.SampleRate), Channels: int(d.NumChans)}
	perSegment := int(length.Seconds()*float64(format.SampleRate)) * format.Channels
	if perSegment <= 0 {
		return 0, fmt.Errorf("segment length %s is shorter than one frame", length)
	}

	data := make([]int, perSegment)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
	}

	segments := 0
	for {
		if err := ctx.Err(); err != nil {
			return segments, err
		}

		n, err := fill(d, buf, data)
		if err != nil {
			return segments, fmt.Errorf("failed to read segment %d: %w", segments, err)
		}
		if n == 0 {
			return segments, nil
		}

		if err := exportSegment(ctx, dir, segments, format, data[:n], fn); err != nil {
			return segments + 1, err
		}
		segments++

		if n < perSegment {
			return segments, nil
		}
	}
}

// fill reads samples into data until it is full or the pcm chunk is exhausted.
func fill(d *wav.Decoder, buf *goaudio.IntBuffer, data []int) (int, error) {
	filled := 0
	for filled < len(data) {
		buf.Data = data[filled:]
		n, err := d.PCMBuffer(buf)
		filled += n
		if err != nil && !errors.Is(err, io.EOF) {
			return filled, err
		}
		if n == 0 {
			break
		}
	}
	return filled, nil
}

func exportSegment(ctx context.Context, dir string, index int, format Format, samples []int, fn SegmentFunc) error {
	tmp, err := os.CreateTemp(dir, fmt.Sprintf("segment-%03d-*.wav", index))
	if err != nil {
		return fmt.Errorf("failed to create segment file: %w", err)
	}
	segmentPath := tmp.Name()
	defer os.Remove(segmentPath)

	w := newWriter(tmp, format)
	if err := w.writeInts(samples); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return fn(ctx, index, segmentPath)
}
