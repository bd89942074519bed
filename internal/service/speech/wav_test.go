package speech

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func sineStereoFloatWAV(t *testing.T, rate int, seconds float64) []byte {
	t.Helper()
	frames := int(float64(rate) * seconds)
	var data bytes.Buffer
	for i := 0; i < frames; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		_ = binary.Write(&data, binary.LittleEndian, v)
		_ = binary.Write(&data, binary.LittleEndian, v)
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+data.Len()))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(wavFormatFloat))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate*2*4))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(8))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(32))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())
	return buf.Bytes()
}

func TestDecodeWAVFloatStereo(t *testing.T) {
	pcm, err := DecodeWAV(sineStereoFloatWAV(t, 44100, 0.1))
	if err != nil {
		t.Fatalf("DecodeWAV returned error: %v", err)
	}
	if pcm.SampleRate != 44100 || pcm.Channels != 2 {
		t.Fatalf("unexpected header: rate=%d channels=%d", pcm.SampleRate, pcm.Channels)
	}
	if len(pcm.Samples) != 4410*2 {
		t.Fatalf("expected %d samples, got %d", 4410*2, len(pcm.Samples))
	}
	if mono := pcm.Mono(); len(mono) != 4410 {
		t.Fatalf("expected 4410 mono frames, got %d", len(mono))
	}
}

// withDataSize overwrites the data chunk length of a sineStereoFloatWAV clip.
func withDataSize(clip []byte, size uint32) []byte {
	out := append([]byte(nil), clip...)
	binary.LittleEndian.PutUint32(out[40:44], size)
	return out
}

func TestDecodeWAVStreamingPlaceholderSize(t *testing.T) {
	for _, size := range []uint32{0, 0xFFFFFFFF} {
		pcm, err := DecodeWAV(withDataSize(sineStereoFloatWAV(t, 44100, 0.1), size))
		if err != nil {
			t.Fatalf("size %#x: DecodeWAV returned error: %v", size, err)
		}
		if len(pcm.Samples) != 4410*2 {
			t.Fatalf("size %#x: expected %d samples, got %d", size, 4410*2, len(pcm.Samples))
		}
		if level := RMS(pcm.Mono()); level < 0.3 {
			t.Fatalf("size %#x: expected audible signal, rms=%.4f", size, level)
		}
	}
}

func TestEncodeDecodeRoundTripPCM16(t *testing.T) {
	samples := []float32{0, 0.25, -0.25, 0.99, -0.99}
	pcm, err := DecodeWAV(EncodeWAV(samples, TargetSampleRate))
	if err != nil {
		t.Fatalf("DecodeWAV returned error: %v", err)
	}
	if pcm.SampleRate != TargetSampleRate || pcm.Channels != 1 {
		t.Fatalf("unexpected header: rate=%d channels=%d", pcm.SampleRate, pcm.Channels)
	}
	for i, want := range samples {
		if diff := math.Abs(float64(pcm.Samples[i] - want)); diff > 0.001 {
			t.Fatalf("sample %d = %f, want %f", i, pcm.Samples[i], want)
		}
	}
}

func TestDecodeWAVRejectsOtherContainers(t *testing.T) {
	if _, err := DecodeWAV([]byte("OggS\x00\x02 not a wav file")); err == nil {
		t.Fatal("expected error for non-WAV input")
	}
	if IsWAV([]byte("RIFF")) {
		t.Fatal("truncated header must not count as WAV")
	}
}

func TestResampleLengthAndShape(t *testing.T) {
	in := make([]float32, 48000)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 200 * float64(i) / 48000))
	}
	out := Resample(in, 48000, TargetSampleRate)
	if len(out) != TargetSampleRate {
		t.Fatalf("expected %d samples, got %d", TargetSampleRate, len(out))
	}
	// 200 Hz 远低于新的奈奎斯特频率，能量应基本保留
	if ratio := RMS(out) / RMS(in); ratio < 0.9 || ratio > 1.1 {
		t.Fatalf("unexpected energy ratio after resampling: %f", ratio)
	}

	up := Resample([]float32{0, 1}, 8000, 16000)
	if len(up) != 4 || up[1] != 0.5 {
		t.Fatalf("unexpected upsample output: %v", up)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Fatalf("RMS(nil) = %f", got)
	}
	if got := RMS([]float32{0.5, -0.5}); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("RMS = %f, want 0.5", got)
	}
}
