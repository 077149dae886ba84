package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWhisperTranscribeSendsLabelledMultipart(t *testing.T) {
	var gotAuth, gotFilename, gotPartType, gotModel string
	var gotAudio []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			gotFilename = header.Filename
			gotPartType = header.Header.Get("Content-Type")
			gotAudio, _ = io.ReadAll(file)
			file.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"hello from whisper"}`)
	}))
	defer srv.Close()

	c := NewWhisperClient(WhisperConfig{APIKey: "sk-test", BaseURL: srv.URL})
	text, err := c.Transcribe(context.Background(), []byte{1, 2, 3, 4}, HintWebM)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "hello from whisper" {
		t.Fatalf("text = %q", text)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotFilename != "audio.webm" || gotPartType != "audio/webm" {
		t.Fatalf("file part = (%q, %q), want explicit webm hint", gotFilename, gotPartType)
	}
	if gotModel != "whisper-1" {
		t.Fatalf("model = %q, want whisper-1 default", gotModel)
	}
	if string(gotAudio) != string([]byte{1, 2, 3, 4}) {
		t.Fatalf("audio bytes not passed through verbatim: %v", gotAudio)
	}
}

func TestWhisperTranscribeWrapsRawPCMInWAV(t *testing.T) {
	var gotFilename string
	var gotAudio []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			gotFilename = header.Filename
			gotAudio, _ = io.ReadAll(file)
			file.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"ok"}`)
	}))
	defer srv.Close()

	c := NewWhisperClient(WhisperConfig{BaseURL: srv.URL})
	if _, err := c.Transcribe(context.Background(), []byte{1, 2, 3, 4}, HintPCM); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if gotFilename != "audio.wav" {
		t.Fatalf("filename = %q, want audio.wav", gotFilename)
	}
	if len(gotAudio) != 44+4 || string(gotAudio[:4]) != "RIFF" {
		t.Fatalf("payload should be a WAV container, got %d bytes %q", len(gotAudio), gotAudio[:4])
	}
}

func TestWhisperTranscribeRequiresContainerHint(t *testing.T) {
	c := NewWhisperClient(WhisperConfig{BaseURL: "http://unused.invalid"})
	if _, err := c.Transcribe(context.Background(), []byte{1}, ContainerHint{}); !errors.Is(err, ErrMissingContainerHint) {
		t.Fatalf("error = %v, want ErrMissingContainerHint", err)
	}
}

func TestWhisperTranscribeWrapsServiceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad audio"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewWhisperClient(WhisperConfig{BaseURL: srv.URL})
	_, err := c.Transcribe(context.Background(), []byte{1}, HintWAV)
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("error = %v, want ErrTranscriptionFailed", err)
	}
	if !strings.Contains(err.Error(), "400") {
		t.Fatalf("error should carry status: %v", err)
	}
}

func TestHintFromFilename(t *testing.T) {
	if h := HintFromFilename("call.WEBM"); h != HintWebM {
		t.Fatalf("webm hint = %+v", h)
	}
	if h := HintFromFilename("upload.mp3"); h != HintMP3 {
		t.Fatalf("mp3 hint = %+v", h)
	}
	if h := HintFromFilename("mystery.bin"); h != HintWAV {
		t.Fatalf("fallback hint = %+v, want WAV", h)
	}
}
