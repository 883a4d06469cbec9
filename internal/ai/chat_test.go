package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func chatServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := `{"incident_type":"flood","category":"rescue","urgency":3}`
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func cacheLen(c *ChatClassifier) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

func TestChatClassifierCacheDropsExpiredEntries(t *testing.T) {
	c := &ChatClassifier{BaseURL: chatServer(t).URL, Model: "m", CacheTTL: time.Millisecond}
	ctx := context.Background()
	for i := 0; i < 500; i++ {
		if _, err := c.Classify(ctx, Input{Text: fmt.Sprintf("water rising on street %d", i)}); err != nil {
			t.Fatalf("classify %d: %v", i, err)
		}
	}
	time.Sleep(20 * time.Millisecond)

	if _, err := c.Classify(ctx, Input{Text: "one more report"}); err != nil {
		t.Fatalf("classify: %v", err)
	}
	if n := cacheLen(c); n != 1 {
		t.Fatalf("expected only the fresh entry, got %d", n)
	}
}

func TestChatClassifierCacheIsBounded(t *testing.T) {
	c := &ChatClassifier{BaseURL: chatServer(t).URL, Model: "m", CacheTTL: time.Hour, CacheMax: 10}
	for i := 0; i < 50; i++ {
		if _, err := c.Classify(context.Background(), Input{Text: fmt.Sprintf("report %d", i)}); err != nil {
			t.Fatalf("classify %d: %v", i, err)
		}
	}
	if n := cacheLen(c); n > 10 {
		t.Fatalf("expected at most 10 cached entries, got %d", n)
	}
}
