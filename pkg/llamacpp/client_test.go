package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newCompletionServer(t *testing.T, status int, content interface{}, got *ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != completionsPath {
			http.NotFound(w, r)
			return
		}
		if got != nil {
			json.NewDecoder(r.Body).Decode(got)
		}
		if status != http.StatusOK {
			http.Error(w, "overloaded", status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "1",
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyzeFacade(t *testing.T) {
	var got ChatCompletionRequest
	srv := newCompletionServer(t, http.StatusOK, `{"openings":[{"label":"door","confidence":0.7,"box":{"x":0.4,"y":0.6,"w":0.2,"h":0.4}}]}`, &got)
	c, _ := NewClient(srv.URL + "/")

	res, err := c.AnalyzeFacade(context.Background(), "qwen-vl", "find openings", "aW1n")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Openings) != 1 || res.Openings[0].Label != "door" {
		t.Errorf("Unexpected result %+v", res)
	}

	parts, ok := got.Messages[0].Content.([]interface{})
	if !ok || len(parts) != 2 {
		t.Fatalf("Expected text and image parts, got %#v", got.Messages[0].Content)
	}
	img := parts[1].(map[string]interface{})["image_url"].(map[string]interface{})["url"].(string)
	if !strings.HasPrefix(img, "data:image/jpeg;base64,") {
		t.Errorf("Unexpected image URL %q", img)
	}
}

func TestSimpleQueryArrayContent(t *testing.T) {
	srv := newCompletionServer(t, http.StatusOK, []any{map[string]any{"type": "text", "text": "a house"}}, nil)
	c, _ := NewClient(srv.URL)
	out, err := c.SimpleQuery(context.Background(), "m", "describe", "")
	if err != nil {
		t.Fatal(err)
	}
	if out != "a house" {
		t.Errorf("Unexpected reply %q", out)
	}
}

func TestServerError(t *testing.T) {
	srv := newCompletionServer(t, http.StatusServiceUnavailable, "", nil)
	c, _ := NewClient(srv.URL)
	if _, err := c.AnalyzeFacade(context.Background(), "m", "p", ""); err == nil {
		t.Error("Expected an error for HTTP 503")
	}
}

func TestEmptyContent(t *testing.T) {
	srv := newCompletionServer(t, http.StatusOK, "", nil)
	c, _ := NewClient(srv.URL)
	if _, err := c.SimpleQuery(context.Background(), "m", "p", ""); err == nil {
		t.Error("Expected an error for an empty reply")
	}
}
