package moderation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRemoteScorerReturnsScore(t *testing.T) {
	var gotText string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotText = req.Text
		_, _ = w.Write([]byte(`{"score":0.93}`))
	}))
	defer ts.Close()

	score, err := NewRemoteScorer(ts.URL, time.Second).Score(context.Background(), "you landlubber")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != 0.93 {
		t.Fatalf("unexpected score %v", score)
	}
	if gotText != "you landlubber" {
		t.Fatalf("unexpected text sent %q", gotText)
	}
}

func TestRemoteScorerRejectsBadResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusBadGateway, body: `{}`},
		{name: "missing score", status: http.StatusOK, body: `{}`},
		{name: "out of range", status: http.StatusOK, body: `{"score":1.5}`},
		{name: "garbage", status: http.StatusOK, body: `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			if _, err := NewRemoteScorer(ts.URL, time.Second).Score(context.Background(), "hi"); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRemoteScorerRequiresEndpoint(t *testing.T) {
	if _, err := NewRemoteScorer("  ", 0).Score(context.Background(), "hi"); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
}
