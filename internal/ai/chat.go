package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/reliefroute/backend/internal/models"
)

// ChatClassifier asks an OpenAI-compatible chat completions endpoint for a JSON classification.
type ChatClassifier struct {
	BaseURL   string
	Model     string
	APIKey    string
	MaxTokens int
	CacheTTL  time.Duration
	CacheMax  int

	mu        sync.Mutex
	cache     map[string]cacheEntry
	lastSweep time.Time
}

const defaultChatCacheMax = 1024

type cacheEntry struct {
	value models.Classification
	exp   time.Time
}

type RateLimitError struct {
	RetryAfter time.Duration
}

func (r RateLimitError) Error() string {
	if r.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", r.RetryAfter)
	}
	return "rate limited"
}

var errTimeout = errors.New("classifier request timed out")

func (a *ChatClassifier) Classify(ctx context.Context, in Input) (models.Classification, error) {
	if strings.TrimSpace(a.BaseURL) == "" {
		return models.Classification{}, fmt.Errorf("ASSISTANT_BASE_URL is not set")
	}
	if strings.TrimSpace(a.Model) == "" {
		return models.Classification{}, fmt.Errorf("ASSISTANT_MODEL is not set")
	}

	key := in.Combined() + "\x00" + in.Location
	if v, ok := a.cacheGet(key); ok {
		return v, nil
	}

	user, _ := json.Marshal(in)
	payload := map[string]any{
		"model":       a.Model,
		"temperature": 0.2,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt()},
			{"role": "user", "content": string(user)},
		},
	}
	if a.MaxTokens > 0 {
		payload["max_tokens"] = a.MaxTokens
	}
	b, _ := json.Marshal(payload)

	url := strings.TrimRight(a.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return models.Classification{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(a.APIKey) != "" {
		req.Header.Set("Authorization", "Bearer "+a.APIKey)
	}

	resp, err := (&http.Client{Timeout: requestTimeout(ctx)}).Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.Classification{}, fmt.Errorf("%w: %w", errTimeout, context.DeadlineExceeded)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return models.Classification{}, errTimeout
		}
		return models.Classification{}, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusTooManyRequests {
			d, _ := time.ParseDuration(resp.Header.Get("Retry-After") + "s")
			return models.Classification{}, RateLimitError{RetryAfter: d}
		}
		return models.Classification{}, fmt.Errorf("classifier http error: %s", resp.Status)
	}

	var res struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return models.Classification{}, err
	}
	if len(res.Choices) == 0 {
		return models.Classification{}, fmt.Errorf("empty classifier response")
	}

	var parsed classifyResponse
	if err := json.Unmarshal([]byte(stripCodeFence(res.Choices[0].Message.Content)), &parsed); err != nil {
		return models.Classification{}, fmt.Errorf("classifier returned non-JSON content: %w", err)
	}
	out := parsed.toClassification()
	if out.ModelVersion == "" {
		out.ModelVersion = a.Model
	}
	a.cacheSet(key, out)
	return out, nil
}

func systemPrompt() string {
	return "You triage emergency aid requests during disaster response. " +
		"Reply ONLY with a compact JSON object with keys: incident_type (one of: " + strings.Join(IncidentTypes, ", ") +
		"), category (one of: " + strings.Join(Categories, ", ") + "), urgency (1-5), summary, needs (array), " +
		"severity_level (1-5), severity_label, severity_reason, people_affected, trapped, injured, " +
		"special_constraints (array), uncertainty_reasons (array), confidence (0-1)."
}

func requestTimeout(ctx context.Context) time.Duration {
	timeout := 45 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func (a *ChatClassifier) cacheGet(key string) (models.Classification, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.cache[key]; ok {
		if time.Now().Before(e.exp) {
			return e.value, true
		}
		delete(a.cache, key)
	}
	return models.Classification{}, false
}

func (a *ChatClassifier) cacheSet(key string, value models.Classification) {
	ttl := a.CacheTTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	limit := a.CacheMax
	if limit <= 0 {
		limit = defaultChatCacheMax
	}
	now := time.Now()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cache == nil {
		a.cache = map[string]cacheEntry{}
	}
	if now.Sub(a.lastSweep) >= ttl || len(a.cache) >= limit {
		for k, e := range a.cache {
			if !now.Before(e.exp) {
				delete(a.cache, k)
			}
		}
		a.lastSweep = now
	}
	// still full of live entries: evict arbitrary ones
	for k := range a.cache {
		if len(a.cache) < limit {
			break
		}
		delete(a.cache, k)
	}
	a.cache[key] = cacheEntry{value: value, exp: now.Add(ttl)}
}
