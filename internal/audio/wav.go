package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// 16-bit PCM WAV, the interchange format every external processor in the
// pipeline accepts.

const (
	wavFormatPCM   = 1
	wavBitDepth    = 16
	wavHeaderBytes = 44
)

// DecodeWAV parses a 16-bit PCM WAV stream into a Buffer.
func DecodeWAV(r io.Reader) (*Buffer, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a wav stream")
	}

	var (
		sampleRate int
		channels   int
		bitDepth   int
		sawFormat  bool
	)
	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("wav stream has no data chunk")
			}
			return nil, fmt.Errorf("read chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			if format := binary.LittleEndian.Uint16(body[0:2]); format != wavFormatPCM {
				return nil, fmt.Errorf("unsupported wav format %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitDepth = int(binary.LittleEndian.Uint16(body[14:16]))
			if bitDepth != wavBitDepth {
				return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
			}
			if channels < 1 || sampleRate < 1 {
				return nil, fmt.Errorf("invalid fmt chunk: channels=%d rate=%d", channels, sampleRate)
			}
			sawFormat = true
		case "data":
			if !sawFormat {
				return nil, fmt.Errorf("wav data chunk before fmt chunk")
			}
			raw := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, fmt.Errorf("read data chunk: %w", err)
			}
			samples := make([]float64, len(raw)/2)
			for i := range samples {
				samples[i] = float64(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768.0
			}
			return &Buffer{SampleRate: sampleRate, Channels: channels, Samples: samples}, nil
		default:
			// Skip ancillary chunks (LIST, fact, etc). Chunks are word aligned.
			skip := int64(chunkSize)
			if chunkSize%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("skip %s chunk: %w", chunkID, err)
			}
		}
	}
}

// EncodeWAV writes the buffer as a 16-bit PCM WAV stream.
func EncodeWAV(w io.Writer, b *Buffer) error {
	if b == nil || b.Channels < 1 || b.SampleRate < 1 {
		return fmt.Errorf("encode invalid buffer")
	}

	dataSize := len(b.Samples) * 2
	header := make([]byte, wavHeaderBytes)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(b.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(b.SampleRate))
	byteRate := b.SampleRate * b.Channels * wavBitDepth / 8
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	blockAlign := b.Channels * wavBitDepth / 8
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], wavBitDepth)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}

	raw := make([]byte, dataSize)
	for i, sample := range b.Samples {
		scaled := math.Round(sample * 32767.0)
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(int16(scaled)))
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}
