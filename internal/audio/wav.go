package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// wavHeaderSize is the size of the canonical RIFF/WAVE PCM header
const wavHeaderSize = 44

const formatPCM = 1

// riffHeader is the canonical 44-byte header of a PCM WAV file, laid out
// exactly as written to disk
type riffHeader struct {
	RIFF          [4]byte
	RIFFSize      uint32 // file size minus 8
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

func (h *riffHeader) format() Format {
	return Format{
		Channels:   int(h.Channels),
		SampleRate: int(h.SampleRate),
		BitDepth:   int(h.BitsPerSample),
	}
}

// Format describes the layout of raw little-endian PCM data
type Format struct {
	Channels   int `json:"channels" yaml:"channels"`
	SampleRate int `json:"sample_rate" yaml:"sample_rate"`
	BitDepth   int `json:"bit_depth" yaml:"bit_depth"`
}

// DefaultSpeechFormat is the PCM layout returned by the speech model:
// mono, 24kHz, 16-bit.
var DefaultSpeechFormat = Format{Channels: 1, SampleRate: 24000, BitDepth: 16}

// BlockAlign returns the number of bytes in one frame (one sample per channel)
func (f Format) BlockAlign() int {
	return f.Channels * f.BitDepth / 8
}

// ByteRate returns the number of bytes per second of audio
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// Validate checks that the format can be written to a PCM WAV container
func (f Format) Validate() error {
	if f.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", f.Channels)
	}

	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}

	switch f.BitDepth {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth: %d (must be 8, 16, 24 or 32)", f.BitDepth)
	}

	return nil
}

// EncodeWAV wraps raw little-endian PCM bytes into a WAV container
func EncodeWAV(pcm []byte, f Format) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio data")
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid PCM format: %w", err)
	}

	if len(pcm)%f.BlockAlign() != 0 {
		return nil, fmt.Errorf("pcm length %d is not a multiple of block align %d", len(pcm), f.BlockAlign())
	}

	h := riffHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		RIFFSize:      uint32(wavHeaderSize - 8 + len(pcm)),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   formatPCM,
		Channels:      uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.ByteRate()),
		BlockAlign:    uint16(f.BlockAlign()),
		BitsPerSample: uint16(f.BitDepth),
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(len(pcm)),
	}

	out := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	if err := binary.Write(out, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	out.Write(pcm)

	return out.Bytes(), nil
}

// EncodeSamples encodes mono PCM-16 samples into WAV format
func EncodeSamples(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to encode")
	}

	pcm := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(s))
	}

	return EncodeWAV(pcm, Format{Channels: 1, SampleRate: sampleRate, BitDepth: 16})
}

// DecodeWAV splits a WAV file into its PCM payload and format
func DecodeWAV(data []byte) ([]byte, Format, error) {
	h, err := readHeader(data)
	if err != nil {
		return nil, Format{}, err
	}

	if h.AudioFormat != formatPCM {
		return nil, Format{}, fmt.Errorf("unsupported audio format %d, only PCM is supported", h.AudioFormat)
	}

	end := wavHeaderSize + int(h.DataSize)
	if end > len(data) {
		return nil, Format{}, fmt.Errorf("truncated WAV data: header declares %d bytes, have %d", h.DataSize, len(data)-wavHeaderSize)
	}

	return data[wavHeaderSize:end], h.format(), nil
}

// ValidateWAV checks the chunk markers of a canonical PCM WAV header
func ValidateWAV(data []byte) error {
	if len(data) < wavHeaderSize {
		return fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}

	markers := []struct {
		offset int
		want   string
	}{
		{0, "RIFF"},
		{8, "WAVE"},
		{12, "fmt "},
		{36, "data"},
	}
	for _, m := range markers {
		if got := string(data[m.offset : m.offset+4]); got != m.want {
			return fmt.Errorf("invalid WAV file: expected %q at offset %d, got %q", m.want, m.offset, got)
		}
	}

	return nil
}

// WAVInfo describes the audio held by a WAV file
type WAVInfo struct {
	Format
	Frames   int     `json:"frames"`
	DataSize int     `json:"data_bytes"`
	Duration float64 `json:"duration_seconds"`
}

// GetWAVInfo reads the format, frame count and duration of a WAV file
func GetWAVInfo(data []byte) (*WAVInfo, error) {
	h, err := readHeader(data)
	if err != nil {
		return nil, err
	}

	if h.SampleRate == 0 || h.BlockAlign == 0 {
		return nil, fmt.Errorf("invalid WAV header: zero sample rate or block align")
	}

	frames := int(h.DataSize) / int(h.BlockAlign)
	return &WAVInfo{
		Format:   h.format(),
		Frames:   frames,
		DataSize: int(h.DataSize),
		Duration: float64(frames) / float64(h.SampleRate),
	}, nil
}

// GetWAVDuration returns the duration of a WAV file in seconds
func GetWAVDuration(data []byte) (float64, error) {
	info, err := GetWAVInfo(data)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

func readHeader(data []byte) (*riffHeader, error) {
	if err := ValidateWAV(data); err != nil {
		return nil, err
	}

	var h riffHeader
	if err := binary.Read(bytes.NewReader(data[:wavHeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}

	return &h, nil
}
