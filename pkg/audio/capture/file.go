// ABOUTME: File-backed capture sources for streaming pre-recorded audio
// ABOUTME: Supports MP3, FLAC and raw s16le files with optional looping
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/pcmlink/pkg/audio"
)

// decodeChunk is the number of native samples pulled from a decoder per read
const decodeChunk = 4096

// pcmDecoder yields native interleaved int16 samples
type pcmDecoder interface {
	Read(samples []int16) (int, error)
	SampleRate() int
	Channels() int
	Close() error
}

// FileSource streams decoded audio from a file in the stream format
type FileSource struct {
	path    string
	format  audio.Format
	loop    bool
	open    func() (pcmDecoder, error)
	decoder pcmDecoder
	conv    *converter
	pending []int16
	scratch []int16
	done    bool
	fresh   bool // decoder has not produced samples yet
	log     *logrus.Entry
}

// OpenFile opens an audio file and adapts it to format. The decoder is
// chosen by extension: .mp3, .flac, or .raw/.pcm for headerless s16le
// already in the stream format.
func OpenFile(path string, format audio.Format, loop bool) (*FileSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	var open func() (pcmDecoder, error)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		open = func() (pcmDecoder, error) { return openMP3(path) }
	case ".flac":
		open = func() (pcmDecoder, error) { return openFLAC(path) }
	case ".raw", ".pcm":
		open = func() (pcmDecoder, error) { return openRaw(path, format) }
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac, .raw, .pcm)", ext)
	}

	dec, err := open()
	if err != nil {
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{
		"component": "capture",
		"file":      filepath.Base(path),
	})
	log.WithFields(logrus.Fields{
		"native_rate":     dec.SampleRate(),
		"native_channels": dec.Channels(),
		"stream_format":   format.String(),
		"loop":            loop,
	}).Info("Loaded audio file")

	return &FileSource{
		path:    path,
		format:  format,
		loop:    loop,
		open:    open,
		decoder: dec,
		conv:    newConverter(dec.SampleRate(), dec.Channels(), format.SampleRate, format.Channels),
		scratch: make([]int16, decodeChunk),
		fresh:   true,
		log:     log,
	}, nil
}

// ReadFrame returns the next frame. When the file ends without looping the
// final partial frame is zero padded and the following call returns io.EOF.
func (s *FileSource) ReadFrame(samplesPerChannel int) ([]byte, error) {
	need := samplesPerChannel * s.format.Channels

	for len(s.pending) < need && !s.done {
		if err := s.fill(); err != nil {
			return nil, err
		}
	}

	if len(s.pending) == 0 {
		return nil, io.EOF
	}

	frame := make([]int16, need)
	n := copy(frame, s.pending)
	s.pending = append(s.pending[:0], s.pending[n:]...)

	return audio.SamplesToBytes(frame), nil
}

// fill decodes one chunk into pending, reopening the file at EOF when looping
func (s *FileSource) fill() error {
	n, err := s.decoder.Read(s.scratch)
	if n > 0 {
		s.pending = append(s.pending, s.conv.convert(s.scratch[:n])...)
		s.fresh = false
	}

	if err == nil {
		return nil
	}
	if !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", filepath.Base(s.path), err)
	}

	if !s.loop {
		s.done = true
		return nil
	}
	if s.fresh {
		return fmt.Errorf("audio file %s contains no samples", filepath.Base(s.path))
	}

	s.log.Debug("End of file, looping")
	if cerr := s.decoder.Close(); cerr != nil {
		s.log.WithError(cerr).Warn("Failed to close decoder")
	}
	dec, err := s.open()
	if err != nil {
		return fmt.Errorf("reopen %s: %w", filepath.Base(s.path), err)
	}
	s.decoder = dec
	s.conv.reset()
	s.fresh = true
	return nil
}

func (s *FileSource) Format() audio.Format { return s.format }

func (s *FileSource) Close() error {
	return s.decoder.Close()
}

// mp3Decoder wraps go-mp3, which always produces 16-bit stereo
type mp3Decoder struct {
	file    *os.File
	decoder *mp3.Decoder
	buf     []byte
}

func openMP3(path string) (*mp3Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	return &mp3Decoder{file: f, decoder: decoder}, nil
}

func (d *mp3Decoder) Read(samples []int16) (int, error) {
	numBytes := len(samples) * audio.BytesPerSample
	if cap(d.buf) < numBytes {
		d.buf = make([]byte, numBytes)
	}
	buf := d.buf[:numBytes]

	n, err := io.ReadFull(d.decoder, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}

	numSamples := n / audio.BytesPerSample
	copy(samples, audio.BytesToSamples(buf[:numSamples*audio.BytesPerSample]))

	return numSamples, err
}

func (d *mp3Decoder) SampleRate() int { return d.decoder.SampleRate() }
func (d *mp3Decoder) Channels() int   { return 2 }
func (d *mp3Decoder) Close() error    { return d.file.Close() }

// flacDecoder wraps mewkiz/flac, interleaving subframes into int16
type flacDecoder struct {
	file     *os.File
	stream   *flac.Stream
	bitDepth int
	channels int
	leftover []int16
}

func openFLAC(path string) (*flacDecoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	return &flacDecoder{
		file:     f,
		stream:   stream,
		bitDepth: int(stream.Info.BitsPerSample),
		channels: int(stream.Info.NChannels),
	}, nil
}

func (d *flacDecoder) Read(samples []int16) (int, error) {
	for len(d.leftover) == 0 {
		frame, err := d.stream.ParseNext()
		if err != nil {
			return 0, err
		}

		blockSize := int(frame.BlockSize)
		for i := 0; i < blockSize; i++ {
			for ch := 0; ch < d.channels; ch++ {
				d.leftover = append(d.leftover, audio.SampleFromInt32(frame.Subframes[ch].Samples[i], d.bitDepth))
			}
		}
	}

	n := copy(samples, d.leftover)
	d.leftover = d.leftover[n:]
	return n, nil
}

func (d *flacDecoder) SampleRate() int { return int(d.stream.Info.SampleRate) }
func (d *flacDecoder) Channels() int   { return d.channels }
func (d *flacDecoder) Close() error    { return d.file.Close() }

// rawDecoder reads headerless s16le in the stream format
type rawDecoder struct {
	file   *os.File
	format audio.Format
	buf    []byte
}

func openRaw(path string, format audio.Format) (*rawDecoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw PCM file: %w", err)
	}
	return &rawDecoder{file: f, format: format}, nil
}

func (d *rawDecoder) Read(samples []int16) (int, error) {
	numBytes := len(samples) * audio.BytesPerSample
	if cap(d.buf) < numBytes {
		d.buf = make([]byte, numBytes)
	}
	buf := d.buf[:numBytes]

	n, err := io.ReadFull(d.file, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}

	numSamples := n / audio.BytesPerSample
	copy(samples, audio.BytesToSamples(buf[:numSamples*audio.BytesPerSample]))

	return numSamples, err
}

func (d *rawDecoder) SampleRate() int { return d.format.SampleRate }
func (d *rawDecoder) Channels() int   { return d.format.Channels }
func (d *rawDecoder) Close() error    { return d.file.Close() }
