package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/tts"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty api key, got nil")
	}
}

func TestSynthesize(t *testing.T) {
	t.Parallel()

	wantAudio := []byte("fake-mp3-bytes")
	var gotPath, gotKey string
	var gotBody synthesizeRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(wantAudio)
	}))
	defer srv.Close()

	p, err := New("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	audio, err := p.Synthesize(context.Background(), "hello there", tts.VoiceProfile{ID: DefaultVoiceID})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if !bytes.Equal(audio, wantAudio) {
		t.Errorf("audio = %q, want %q", audio, wantAudio)
	}
	if gotPath != "/v1/text-to-speech/"+DefaultVoiceID {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("xi-api-key = %q", gotKey)
	}
	if gotBody.Text != "hello there" {
		t.Errorf("request text = %q", gotBody.Text)
	}
	if gotBody.ModelID != defaultModel {
		t.Errorf("request model = %q, want %q", gotBody.ModelID, defaultModel)
	}
	if gotBody.VoiceSettings.Stability != 0.5 || gotBody.VoiceSettings.SimilarityBoost != 0.75 {
		t.Errorf("voice settings = %+v, want defaults", gotBody.VoiceSettings)
	}
}

func TestSynthesize_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, _ := New("test-key", WithBaseURL(srv.URL))
	_, err := p.Synthesize(context.Background(), "hi", tts.VoiceProfile{ID: "v1"})
	if err == nil {
		t.Fatal("expected error for non-200 response, got nil")
	}
}

func TestSynthesize_Validation(t *testing.T) {
	t.Parallel()
	p, _ := New("test-key")

	if _, err := p.Synthesize(context.Background(), "hi", tts.VoiceProfile{}); err == nil {
		t.Error("expected error for empty voice id")
	}
	if _, err := p.Synthesize(context.Background(), "", tts.VoiceProfile{ID: "v1"}); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestParseVoicesResponse(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"voices": [
			{"voice_id": "v1", "name": "Rachel", "category": "premade", "labels": {"accent": "american"}},
			{"voice_id": "v2", "name": "Antoni", "labels": {}}
		]
	}`)

	profiles, err := parseVoicesResponse(raw)
	if err != nil {
		t.Fatalf("parseVoicesResponse: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("got %d profiles, want 2", len(profiles))
	}
	if profiles[0].ID != "v1" || profiles[0].Name != "Rachel" || profiles[0].Provider != "elevenlabs" {
		t.Errorf("profile[0] = %+v", profiles[0])
	}
	if profiles[0].Metadata["category"] != "premade" || profiles[0].Metadata["accent"] != "american" {
		t.Errorf("profile[0] metadata = %+v", profiles[0].Metadata)
	}
}
