package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"meal2list/internal/core/ai"
	"meal2list/internal/infrastructure/config"
	"meal2list/internal/pkg/common"
)

func imageTestConfig(relayURL string) *config.Config {
	return &config.Config{
		Relay: config.RelayConfig{
			BaseURL:     relayURL,
			TextModel:   "test/text",
			VisionModel: "test/vision",
			MaxTokens:   1024,
			Timeout:     5 * time.Second,
		},
		Image: config.ImageConfig{
			MaxSizeBytes:  10 * 1024 * 1024,
			EncodeTimeout: 5 * time.Second,
			OCRTimeout:    10 * time.Second,
		},
	}
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func chatResponse(content string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return body
}

func newImageAdapterForTest(cfg *config.Config) *ImageAdapter {
	a := NewImageAdapter(cfg, ai.NewClient(cfg))
	a.policy.BaseDelay = time.Millisecond
	a.policy.MaxDelay = 2 * time.Millisecond
	return a
}

func TestImageAdapterRejectsOversizedFileBeforeNetwork(t *testing.T) {
	var relayCalls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&relayCalls, 1)
	}))
	defer srv.Close()

	cfg := imageTestConfig(srv.URL)
	cfg.Image.MaxSizeBytes = 1024
	a := newImageAdapterForTest(cfg)

	_, err := a.ProduceRecipeText(context.Background(), ImageUpload{
		Filename:    "huge.jpg",
		ContentType: "image/jpeg",
		Data:        make([]byte, 2048),
	})
	if common.CodeOf(err) != common.ErrCodeInvalidFile {
		t.Fatalf("code = %s, want INVALID_FILE", common.CodeOf(err))
	}
	if n := atomic.LoadInt64(&relayCalls); n != 0 {
		t.Errorf("relay was called %d times, want 0", n)
	}
}

func TestImageAdapterRejectsUnsupportedType(t *testing.T) {
	a := newImageAdapterForTest(imageTestConfig("http://invalid"))

	_, err := a.ProduceRecipeText(context.Background(), ImageUpload{
		Filename:    "anim.gif",
		ContentType: "image/gif",
		Data:        []byte("GIF89a"),
	})
	if common.CodeOf(err) != common.ErrCodeInvalidFile {
		t.Errorf("code = %s, want INVALID_FILE", common.CodeOf(err))
	}
}

func TestImageAdapterRejectsCorruptImage(t *testing.T) {
	a := newImageAdapterForTest(imageTestConfig("http://invalid"))

	_, err := a.ProduceRecipeText(context.Background(), ImageUpload{
		Filename:    "fake.png",
		ContentType: "image/png",
		Data:        []byte("definitely not a png"),
	})
	if common.CodeOf(err) != common.ErrCodeInvalidFile {
		t.Errorf("code = %s, want INVALID_FILE", common.CodeOf(err))
	}
}

func TestImageAdapterExtractsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string            `json:"model"`
			Messages []json.RawMessage `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "test/vision" {
			t.Errorf("model = %q, want the vision model", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Errorf("messages = %d, want system + vision pair", len(req.Messages))
		}
		w.Write(chatResponse("## Pancakes\n- 2 eggs\n- 1L milk"))
	}))
	defer srv.Close()

	a := newImageAdapterForTest(imageTestConfig(srv.URL))

	text, err := a.ProduceRecipeText(context.Background(), ImageUpload{
		Filename:    "recipe.png",
		ContentType: "image/png",
		Data:        tinyPNG(t),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "2 eggs") {
		t.Errorf("extracted text = %q", text)
	}
}

func TestImageAdapterRetriesRelayFailures(t *testing.T) {
	var attempts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(chatResponse("salt, pepper"))
	}))
	defer srv.Close()

	a := newImageAdapterForTest(imageTestConfig(srv.URL))

	text, err := a.ProduceRecipeText(context.Background(), ImageUpload{
		Filename:    "recipe.png",
		ContentType: "image/png",
		Data:        tinyPNG(t),
	})
	if err != nil {
		t.Fatal(err)
	}
	if text != "salt, pepper" {
		t.Errorf("text = %q", text)
	}
	if n := atomic.LoadInt64(&attempts); n != 3 {
		t.Errorf("relay attempts = %d, want 3", n)
	}
}

func TestImageAdapterEmptyExtractionFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatResponse("<div onload=x javascript:void></div>"))
	}))
	defer srv.Close()

	a := newImageAdapterForTest(imageTestConfig(srv.URL))

	_, err := a.ProduceRecipeText(context.Background(), ImageUpload{
		Filename:    "recipe.png",
		ContentType: "image/png",
		Data:        tinyPNG(t),
	})
	if common.CodeOf(err) != common.ErrCodeAPIError {
		t.Errorf("code = %s, want API_ERROR for empty extraction", common.CodeOf(err))
	}
}

func TestSanitizeExtractedText(t *testing.T) {
	in := `<script>alert(1)</script>Recipe javascript:evil() with onclick= text`
	out := SanitizeExtractedText(in)
	if strings.Contains(out, "<") || strings.Contains(out, "script>") {
		t.Errorf("tags not stripped: %q", out)
	}
	if strings.Contains(strings.ToLower(out), "javascript:") {
		t.Errorf("javascript scheme not stripped: %q", out)
	}
	if strings.Contains(strings.ToLower(out), "onclick=") {
		t.Errorf("event handler not stripped: %q", out)
	}

	long := strings.Repeat("x", common.MaxSanitizedTextLength+500)
	if got := SanitizeExtractedText(long); len(got) != common.MaxSanitizedTextLength {
		t.Errorf("length cap = %d, want %d", len(got), common.MaxSanitizedTextLength)
	}
}

func TestSanitizeExtractedTextCapKeepsValidUTF8(t *testing.T) {
	// the leading byte shifts the two-byte runes so the cap lands mid-rune
	long := "x" + strings.Repeat("å", common.MaxSanitizedTextLength)
	got := SanitizeExtractedText(long)
	if len(got) > common.MaxSanitizedTextLength {
		t.Errorf("length = %d, want <= %d", len(got), common.MaxSanitizedTextLength)
	}
	if !utf8.ValidString(got) {
		t.Error("capped text is not valid UTF-8")
	}
}
