package audio

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	pcm := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	wav := EncodeWAVPCM16LE(pcm, 8000)

	info, gotPCM, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV() error = %v", err)
	}
	if info.SampleRate != 8000 || info.Channels != 1 || info.BitsPerSample != 16 {
		t.Fatalf("info = %+v", info)
	}
	if !bytes.Equal(gotPCM, pcm) {
		t.Fatalf("pcm = %v, want %v", gotPCM, pcm)
	}
}

func TestEncodeDefaultsSampleRate(t *testing.T) {
	wav := EncodeWAVPCM16LE([]byte{1, 2}, 0)
	info, _, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV() error = %v", err)
	}
	if info.SampleRate != 16000 {
		t.Fatalf("SampleRate = %d, want 16000", info.SampleRate)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, _, err := ParseWAV([]byte("definitely not audio")); !errors.Is(err, ErrNotWAV) {
		t.Fatalf("error = %v, want ErrNotWAV", err)
	}
	// Valid magic but a chunk that claims more bytes than exist.
	bad := EncodeWAVPCM16LE([]byte{1, 2, 3, 4}, 8000)[:20]
	if _, _, err := ParseWAV(bad); err == nil {
		t.Fatal("truncated stream accepted")
	}
}
