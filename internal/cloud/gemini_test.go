package cloud

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/heimdex/brushdetect/internal/detect"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestGemini(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g, err := New(context.Background(), Config{
		APIKey:     "test-key-123456",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     testLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("expected error for missing api key")
	}
}

func TestGetMapsState(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !strings.HasSuffix(r.URL.Path, "/files/abc") {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"name":     "files/abc",
			"uri":      "https://example.test/files/abc",
			"mimeType": "video/mp4",
			"state":    "ACTIVE",
		})
	})

	asset, err := g.Get(context.Background(), "files/abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if asset.Name != "files/abc" || asset.URI != "https://example.test/files/abc" || asset.State != detect.StateActive {
		t.Errorf("asset = %+v", asset)
	}
}

func TestGenerateSendsSchema(t *testing.T) {
	var body map[string]any
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": `{"L":[1,2],"R":null,"notes":"ok"}`}},
				},
			}},
		})
	})

	asset := detect.Asset{Name: "files/abc", URI: "https://example.test/files/abc", MIMEType: "video/mp4"}
	text, err := g.Generate(context.Background(), asset, detect.Request{Model: "test-model", Prompt: "find brushing"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != `{"L":[1,2],"R":null,"notes":"ok"}` {
		t.Errorf("text = %q", text)
	}

	gen, ok := body["generationConfig"].(map[string]any)
	if !ok {
		t.Fatalf("request has no generationConfig: %v", body)
	}
	if gen["responseMimeType"] != "application/json" {
		t.Errorf("responseMimeType = %v", gen["responseMimeType"])
	}
	if _, ok := gen["responseSchema"]; !ok {
		t.Error("request has no responseSchema")
	}
}

func TestGeneratePermanentError(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"bad model","status":"INVALID_ARGUMENT"}}`))
	})

	_, err := g.Generate(context.Background(), detect.Asset{URI: "u", MIMEType: "video/mp4"}, detect.Request{Model: "m", Prompt: "p"})
	if err == nil {
		t.Fatal("expected error")
	}
	if detect.ClassOf(err) != detect.ClassPermanent {
		t.Errorf("class = %v, want permanent", detect.ClassOf(err))
	}
}

func TestResponseSchema(t *testing.T) {
	s := ResponseSchema()
	if s.Type != genai.TypeObject {
		t.Errorf("root type = %v", s.Type)
	}
	want := []string{detect.FieldLeft, detect.FieldRight, detect.FieldNotes}
	if !slices.Equal(s.Required, want) {
		t.Errorf("required = %v, want %v", s.Required, want)
	}
	for _, side := range []string{detect.FieldLeft, detect.FieldRight} {
		p := s.Properties[side]
		if p == nil {
			t.Fatalf("missing property %s", side)
		}
		if p.Type != genai.TypeArray || p.Items == nil || p.Items.Type != genai.TypeInteger {
			t.Errorf("%s: want array of integers, got %+v", side, p)
		}
		if p.Nullable == nil || !*p.Nullable {
			t.Errorf("%s must be nullable", side)
		}
		if p.MinItems == nil || *p.MinItems != 2 || p.MaxItems == nil || *p.MaxItems != 2 {
			t.Errorf("%s must hold exactly two items", side)
		}
	}
	if s.Properties[detect.FieldNotes].Type != genai.TypeString {
		t.Error("notes must be a string")
	}
}

func TestGenerateConfig(t *testing.T) {
	cfg := GenerateConfig(0.25)
	if cfg.Temperature == nil || *cfg.Temperature != 0.25 {
		t.Errorf("temperature = %v", cfg.Temperature)
	}
	if cfg.ResponseMIMEType != "application/json" || cfg.ResponseSchema == nil {
		t.Errorf("config = %+v", cfg)
	}
}

func TestMIMEType(t *testing.T) {
	tests := map[string]string{
		"/a/b.mp4":  "video/mp4",
		"/a/b.MOV":  "video/quicktime",
		"/a/b.webm": "video/webm",
		"/a/b.mkv":  "video/x-matroska",
		"/a/b":      "video/mp4",
	}
	for path, want := range tests {
		if got := MIMEType(path); got != want {
			t.Errorf("MIMEType(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestAssetState(t *testing.T) {
	if assetState(genai.FileStateActive) != detect.StateActive {
		t.Error("ACTIVE")
	}
	if assetState(genai.FileStateFailed) != detect.StateFailed {
		t.Error("FAILED")
	}
	if assetState(genai.FileStateProcessing) != detect.StateProcessing {
		t.Error("PROCESSING")
	}
	if assetFromFile(nil) != (detect.Asset{}) {
		t.Error("nil file should map to zero asset")
	}
}

func TestNewLimiter(t *testing.T) {
	unlimited := NewLimiter(0)
	for i := 0; i < 100; i++ {
		if !unlimited.Allow() {
			t.Fatal("rpm 0 must never block")
		}
	}

	paced := NewLimiter(60)
	if !paced.Allow() {
		t.Fatal("first call should pass")
	}
	if paced.Allow() {
		t.Error("second immediate call should be paced")
	}
	if d := paced.Reserve().Delay(); d <= 0 || d > time.Second {
		t.Errorf("delay = %v, want within one second", d)
	}
}
