package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/OrFisher/real-time-speech-processor/internal/bus"
	"github.com/OrFisher/real-time-speech-processor/internal/config"
	"github.com/OrFisher/real-time-speech-processor/internal/protocol"
	"github.com/OrFisher/real-time-speech-processor/internal/queue"
	"github.com/OrFisher/real-time-speech-processor/internal/session"
	"github.com/OrFisher/real-time-speech-processor/internal/store"
)

type serverFixture struct {
	ts  *httptest.Server
	bus *bus.Memory
	q   *queue.Memory
	st  store.Store
	reg *session.Registry
}

func newServerFixture(t *testing.T, mutate func(*config.Config)) *serverFixture {
	t.Helper()
	f := &serverFixture{
		bus: bus.NewMemory(),
		q:   queue.NewMemory(16),
		st:  store.NewMemoryStore(),
		reg: session.NewRegistry(),
	}
	cfg := config.Config{
		AllowAnyOrigin: true,
		FlushInterval:  20 * time.Millisecond,
		MinFlushBytes:  8,
		UploadMaxBytes: 1 << 20,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv := New(cfg, f.reg, f.bus, f.q, f.st, nil)
	f.ts = httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		f.ts.Close()
		f.bus.Close()
	})
	return f
}

func postJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	body, _ := json.Marshal(v)
	res, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	return res
}

func decodeBody(t *testing.T, res *http.Response, out any) {
	t.Helper()
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestKeywordCRUD(t *testing.T) {
	f := newServerFixture(t, nil)

	res := postJSON(t, f.ts.URL+"/v1/keywords", map[string]any{
		"word":          "budget",
		"talking_point": "Flexible pricing.",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	var created map[string]any
	decodeBody(t, res, &created)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("missing id in create response: %+v", created)
	}
	if created["is_active"] != true {
		t.Fatalf("is_active should default true: %+v", created)
	}

	// Duplicate words conflict.
	res = postJSON(t, f.ts.URL+"/v1/keywords", map[string]any{"word": "Budget"})
	res.Body.Close()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want %d", res.StatusCode, http.StatusConflict)
	}

	req, _ := http.NewRequest(http.MethodPut, f.ts.URL+"/v1/keywords/"+id, strings.NewReader(`{"is_active":false}`))
	putRes, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT error = %v", err)
	}
	var updated map[string]any
	decodeBody(t, putRes, &updated)
	if putRes.StatusCode != http.StatusOK || updated["is_active"] != false {
		t.Fatalf("update: status %d body %+v", putRes.StatusCode, updated)
	}

	listRes, err := http.Get(f.ts.URL + "/v1/keywords")
	if err != nil {
		t.Fatalf("GET list error = %v", err)
	}
	var list map[string][]map[string]any
	decodeBody(t, listRes, &list)
	if len(list["keywords"]) != 1 {
		t.Fatalf("list = %+v", list)
	}

	delReq, _ := http.NewRequest(http.MethodDelete, f.ts.URL+"/v1/keywords/"+id, nil)
	delRes, err := http.DefaultClient.Do(delReq)
	if err != nil {
		t.Fatalf("DELETE error = %v", err)
	}
	delRes.Body.Close()
	if delRes.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", delRes.StatusCode, http.StatusNoContent)
	}

	getRes, err := http.Get(f.ts.URL + "/v1/keywords/" + id)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	getRes.Body.Close()
	if getRes.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted status = %d, want %d", getRes.StatusCode, http.StatusNotFound)
	}
}

func TestKeywordUpdateClearsTalkingPoint(t *testing.T) {
	f := newServerFixture(t, nil)

	res := postJSON(t, f.ts.URL+"/v1/keywords", map[string]any{
		"word":          "timeline",
		"talking_point": "Two-week rollout.",
	})
	var created map[string]any
	decodeBody(t, res, &created)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("missing id in create response: %+v", created)
	}

	// An explicit empty string clears the talking point; other fields
	// left out of the body stay untouched.
	req, _ := http.NewRequest(http.MethodPut, f.ts.URL+"/v1/keywords/"+id, strings.NewReader(`{"talking_point":""}`))
	putRes, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT error = %v", err)
	}
	var updated map[string]any
	decodeBody(t, putRes, &updated)
	if putRes.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want %d", putRes.StatusCode, http.StatusOK)
	}
	if updated["talking_point"] != "" {
		t.Fatalf("talking_point = %q, want cleared", updated["talking_point"])
	}
	if updated["is_active"] != true {
		t.Fatalf("is_active changed by talking-point update: %+v", updated)
	}
}

func TestUploadQueuesFileJob(t *testing.T) {
	f := newServerFixture(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", "call.wav")
	if err != nil {
		t.Fatalf("CreateFormFile error = %v", err)
	}
	if _, err := fw.Write([]byte("fake-wav-bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.WriteField("speaker_type", "agent"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	mw.Close()

	res, err := http.Post(f.ts.URL+"/v1/audio/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload error = %v", err)
	}
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("upload status = %d, want %d", res.StatusCode, http.StatusAccepted)
	}
	var accepted map[string]any
	decodeBody(t, res, &accepted)
	if accepted["session_id"] == "" || accepted["status"] != "queued" {
		t.Fatalf("upload response = %+v", accepted)
	}

	if f.q.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", f.q.Pending())
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	var job queue.Job
	_ = f.q.Consume(ctx, func(_ context.Context, j queue.Job) {
		job = j
		cancel()
	})
	cancel()
	if job.Name != queue.JobProcessAudioFile || job.SpeakerType != "agent" || job.Filename != "call.wav" {
		t.Fatalf("job = %+v", job)
	}
}

func TestUploadRejectsMissingFile(t *testing.T) {
	f := newServerFixture(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("session_id", "s1")
	mw.Close()

	res, err := http.Post(f.ts.URL+"/v1/audio/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestAudioWebSocketRoundTrip(t *testing.T) {
	f := newServerFixture(t, nil)

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws/audio/room-1"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer ws.Close()

	// The self-test frame proves the bus round-trip.
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var selfTest protocol.SelfTestFrame
	if err := ws.ReadJSON(&selfTest); err != nil {
		t.Fatalf("read self-test frame: %v", err)
	}
	if selfTest.Type != protocol.TypeSelfTestResponse {
		t.Fatalf("first frame = %+v", selfTest)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"set_speaker_type","speaker_type":"agent"}`)); err != nil {
		t.Fatalf("write control frame: %v", err)
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, []byte("12345678")); err != nil {
		t.Fatalf("write audio frame: %v", err)
	}

	// The periodic flush pushes the buffered audio to the job queue.
	deadline := time.Now().Add(2 * time.Second)
	for f.q.Pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("audio never reached the job queue")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// A transcript published to the session comes back as a frame.
	ev := protocol.NewTranscriptEventMsg(protocol.TranscriptEvent{
		SessionID:   "room-1",
		SpeakerType: protocol.SpeakerAgent,
		Text:        "hello there",
		Timestamp:   time.Now().UTC(),
	})
	if err := f.bus.Publish(context.Background(), "room-1", ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	var frame protocol.TranscriptionFrame
	if err := ws.ReadJSON(&frame); err != nil {
		t.Fatalf("read transcript frame: %v", err)
	}
	if frame.Type != protocol.TypeTranscription || frame.Data.Text != "hello there" {
		t.Fatalf("frame = %+v", frame)
	}

	ws.Close()
	deadline = time.Now().Add(2 * time.Second)
	for f.reg.ConnectionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection never left the registry")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketOutlivesReadDeadline(t *testing.T) {
	f := newServerFixture(t, func(cfg *config.Config) {
		cfg.WSReadTimeout = 150 * time.Millisecond
	})

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws/audio/long-call"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer ws.Close()

	// Keep a reader running so gorilla's default ping handler answers
	// the server's pings.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Idle across several read deadlines. Pings alone must keep the
	// connection alive.
	time.Sleep(500 * time.Millisecond)

	if n := f.reg.ConnectionCount(); n != 1 {
		t.Fatalf("ConnectionCount() after idling = %d, want 1", n)
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, []byte("12345678")); err != nil {
		t.Fatalf("write audio frame: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for f.q.Pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("audio never reached the job queue after idling")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ws.Close()
	<-readerDone
}

func TestTranscriptionHistoryEndpoint(t *testing.T) {
	f := newServerFixture(t, nil)

	rec := store.Transcription{
		SessionID:   "s1",
		SpeakerType: "prospect",
		Text:        "hello",
		Timestamp:   time.Now().UTC(),
	}
	if err := f.st.SaveTranscription(context.Background(), rec); err != nil {
		t.Fatalf("SaveTranscription error = %v", err)
	}

	res, err := http.Get(f.ts.URL + "/v1/sessions/s1/transcriptions")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	var out struct {
		SessionID      string                `json:"session_id"`
		Transcriptions []store.Transcription `json:"transcriptions"`
	}
	decodeBody(t, res, &out)
	if out.SessionID != "s1" || len(out.Transcriptions) != 1 || out.Transcriptions[0].Text != "hello" {
		t.Fatalf("history = %+v", out)
	}
}

func TestHealthEndpoints(t *testing.T) {
	f := newServerFixture(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		res, err := http.Get(f.ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, res.StatusCode)
		}
	}
}
