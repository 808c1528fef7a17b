package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestDecoderClassifies(t *testing.T) {
	d := NewDecoder(nil)

	tests := []struct {
		raw  string
		want Kind
	}{
		{`{"type":"session.created"}`, KindSessionReady},
		{`{"type":"session.updated"}`, KindSessionReady},
		{`{"type":"response.audio.delta","delta":"AAA="}`, KindAudioDelta},
		{`{"type":"response.output_audio.delta","delta":"AAA="}`, KindAudioDelta},
		{`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`, KindError},
		{`{"type":"response.done"}`, KindResponseDone},
		{`{"type":"input_audio_buffer.speech_started"}`, KindSpeechStarted},
		{`{"type":"response.text.delta","delta":"hi"}`, KindUnknown},
	}

	for _, tt := range tests {
		ev, err := d.Decode([]byte(tt.raw))
		if err != nil {
			t.Fatalf("Decode(%s) error = %v", tt.raw, err)
		}
		if ev.Kind != tt.want {
			t.Errorf("Decode(%s).Kind = %v, want %v", tt.raw, ev.Kind, tt.want)
		}
	}
}

func TestDecoderCustomSynonyms(t *testing.T) {
	d := NewDecoder([]string{"audio.chunk"})

	ev, err := d.Decode([]byte(`{"type":"audio.chunk","delta":"AAA="}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if ev.Kind != KindAudioDelta || ev.Delta != "AAA=" {
		t.Errorf("got %+v, want audio delta", ev)
	}

	ev, _ = d.Decode([]byte(`{"type":"response.audio.delta","delta":"AAA="}`))
	if ev.Kind != KindUnknown {
		t.Errorf("default synonym still active with custom list: %v", ev.Kind)
	}
}

func TestDecoderErrorDetail(t *testing.T) {
	ev, err := NewDecoder(nil).Decode([]byte(`{"type":"error","error":{"type":"server_error","code":"overloaded","message":"try later"}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := ev.Error.String(); got != "server_error (overloaded): try later" {
		t.Errorf("Error.String() = %q", got)
	}
}

func TestDecoderMalformed(t *testing.T) {
	for _, raw := range []string{`not json`, `{"delta":"x"}`} {
		if _, err := NewDecoder(nil).Decode([]byte(raw)); !errors.Is(err, ErrMalformed) {
			t.Errorf("Decode(%q) error = %v, want ErrMalformed", raw, err)
		}
	}
}

func TestNewSessionUpdateDefaults(t *testing.T) {
	data, err := json.Marshal(NewSessionUpdate(SessionConfig{Instructions: "be brief", Voice: "alloy"}))
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var m struct {
		Type    string `json:"type"`
		Session struct {
			Instructions      string   `json:"instructions"`
			Modalities        []string `json:"modalities"`
			InputAudioFormat  string   `json:"input_audio_format"`
			OutputAudioFormat string   `json:"output_audio_format"`
			TurnDetection     struct {
				Type string `json:"type"`
			} `json:"turn_detection"`
		} `json:"session"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if m.Type != "session.update" {
		t.Errorf("type = %q", m.Type)
	}
	if strings.Join(m.Session.Modalities, ",") != "text,audio" {
		t.Errorf("modalities = %v", m.Session.Modalities)
	}
	if m.Session.InputAudioFormat != "pcm16" || m.Session.OutputAudioFormat != "pcm16" {
		t.Errorf("formats = %q/%q", m.Session.InputAudioFormat, m.Session.OutputAudioFormat)
	}
	if m.Session.TurnDetection.Type != "server_vad" {
		t.Errorf("turn_detection.type = %q", m.Session.TurnDetection.Type)
	}
	if m.Session.Instructions != "be brief" {
		t.Errorf("instructions = %q", m.Session.Instructions)
	}
}

func TestDialConfigEndpoint(t *testing.T) {
	cfg := DialConfig{Model: "gpt-4o-realtime-preview", APIKey: "sk-test"}

	endpoint, err := cfg.Endpoint()
	if err != nil {
		t.Fatalf("Endpoint() error = %v", err)
	}
	if endpoint != "wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview" {
		t.Errorf("Endpoint() = %q", endpoint)
	}

	h := cfg.Header()
	if got := h.Get("Authorization"); got != "Bearer sk-test" {
		t.Errorf("Authorization = %q", got)
	}
	if got := h.Get("OpenAI-Beta"); got != "realtime=v1" {
		t.Errorf("OpenAI-Beta = %q", got)
	}
}

func TestDialSendsAuthHeaders(t *testing.T) {
	gotAuth := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization") + "|" + r.URL.Query().Get("model")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	cfg := DialConfig{
		URL:    "ws" + strings.TrimPrefix(server.URL, "http"),
		Model:  "m1",
		APIKey: "sk-abc",
	}
	conn, err := Dial(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if got := <-gotAuth; got != "Bearer sk-abc|m1" {
		t.Errorf("handshake = %q", got)
	}
}

func TestDialRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := Dial(context.Background(), DialConfig{URL: "ws" + strings.TrimPrefix(server.URL, "http")})
	if err == nil {
		t.Fatal("expected dial error")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error %q does not mention status", err)
	}
}
