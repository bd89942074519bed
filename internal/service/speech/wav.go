package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// TargetSampleRate is the rate local transcription models expect.
const TargetSampleRate = 16000

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

var errNotWAV = errors.New("audio is not a RIFF/WAVE file")

// PCM holds decoded, interleaved samples in [-1, 1].
type PCM struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// DecodeWAV parses integer PCM (8/16/24/32 bit) and 32-bit float WAV data.
func DecodeWAV(data []byte) (*PCM, error) {
	if !IsWAV(data) {
		return nil, errNotWAV
	}

	var (
		format        uint16
		channels      uint16
		sampleRate    uint32
		bitsPerSample uint16
		haveFmt       bool
		payload       []byte
	)

	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		end := body + size
		// 流式录音端常把 data 长度写成 0 或 0xFFFFFFFF 占位，此时读到文件末尾
		if end > len(data) || (id == "data" && size == 0) {
			end = len(data)
			size = end - body
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("wav fmt chunk too short: %d bytes", end-body)
			}
			format = binary.LittleEndian.Uint16(data[body:])
			channels = binary.LittleEndian.Uint16(data[body+2:])
			sampleRate = binary.LittleEndian.Uint32(data[body+4:])
			bitsPerSample = binary.LittleEndian.Uint16(data[body+14:])
			if format == wavFormatExtensible && end-body >= 26 {
				format = binary.LittleEndian.Uint16(data[body+24:])
			}
			haveFmt = true
		case "data":
			payload = data[body:end]
		}

		offset = end + size%2
		if payload != nil && haveFmt {
			break
		}
	}

	if !haveFmt {
		return nil, errors.New("wav fmt chunk missing")
	}
	if payload == nil {
		return nil, errors.New("wav data chunk missing")
	}
	if channels == 0 {
		return nil, errors.New("invalid wav header: zero channels")
	}

	samples, err := decodeSamples(payload, format, bitsPerSample)
	if err != nil {
		return nil, err
	}

	return &PCM{SampleRate: int(sampleRate), Channels: int(channels), Samples: samples}, nil
}

func decodeSamples(payload []byte, format, bits uint16) ([]float32, error) {
	switch {
	case format == wavFormatPCM && bits == 8:
		out := make([]float32, len(payload))
		for i, b := range payload {
			out[i] = (float32(b) - 128) / 128
		}
		return out, nil
	case format == wavFormatPCM && bits == 16:
		out := make([]float32, len(payload)/2)
		for i := range out {
			out[i] = float32(int16(binary.LittleEndian.Uint16(payload[i*2:]))) / 32768
		}
		return out, nil
	case format == wavFormatPCM && bits == 24:
		out := make([]float32, len(payload)/3)
		for i := range out {
			b := payload[i*3:]
			v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
			out[i] = float32(v) / 8388608
		}
		return out, nil
	case format == wavFormatPCM && bits == 32:
		out := make([]float32, len(payload)/4)
		for i := range out {
			out[i] = float32(int32(binary.LittleEndian.Uint32(payload[i*4:]))) / 2147483648
		}
		return out, nil
	case format == wavFormatFloat && bits == 32:
		out := make([]float32, len(payload)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported wav encoding: format=%d bits=%d", format, bits)
	}
}

// Mono averages interleaved channels into a single channel.
func (p *PCM) Mono() []float32 {
	if p.Channels <= 1 {
		return append([]float32(nil), p.Samples...)
	}
	frames := len(p.Samples) / p.Channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < p.Channels; c++ {
			sum += p.Samples[i*p.Channels+c]
		}
		out[i] = sum / float32(p.Channels)
	}
	return out
}

// Resample converts mono samples between rates with linear interpolation.
// When downsampling, a box filter over the decimation window runs first to
// keep energy above the new Nyquist frequency from folding back.
func Resample(samples []float32, from, to int) []float32 {
	if from <= 0 || to <= 0 || from == to || len(samples) == 0 {
		return append([]float32(nil), samples...)
	}

	src := samples
	if from > to {
		src = boxFilter(samples, int(math.Round(float64(from)/float64(to))))
	}

	ratio := float64(from) / float64(to)
	outLen := int(float64(len(src)) / ratio)
	out := make([]float32, outLen)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		frac := float32(pos - float64(j))
		if j+1 < len(src) {
			out[i] = src[j]*(1-frac) + src[j+1]*frac
		} else {
			out[i] = src[len(src)-1]
		}
	}
	return out
}

func boxFilter(samples []float32, width int) []float32 {
	if width <= 1 {
		return samples
	}
	out := make([]float32, len(samples))
	var sum float32
	for i, s := range samples {
		sum += s
		if i >= width {
			sum -= samples[i-width]
		}
		n := width
		if i+1 < width {
			n = i + 1
		}
		out[i] = sum / float32(n)
	}
	return out
}

// RMS returns the root-mean-square level of the samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var acc float64
	for _, s := range samples {
		acc += float64(s) * float64(s)
	}
	return math.Sqrt(acc / float64(len(samples)))
}

// EncodeWAV writes mono samples as 16-bit PCM WAV.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	dataSize := len(samples) * 2

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(wavFormatPCM))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*bitsPerSample/8))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels*bitsPerSample/8))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))

	for _, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		_ = binary.Write(&buf, binary.LittleEndian, int16(s*32767))
	}
	return buf.Bytes()
}
