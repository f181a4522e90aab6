package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/frogody/floatr-app-sub000/internal/infra/httpclient"
)

// RemoteScorer asks an external classifier for a toxicity score in [0,1].
// The endpoint receives {"text": ...} and answers {"score": ...}.
type RemoteScorer struct {
	endpoint string
	client   *http.Client
}

type scoreRequest struct {
	Text string `json:"text"`
}

type scoreResponse struct {
	Score *float64 `json:"score"`
}

func NewRemoteScorer(endpoint string, timeout time.Duration) *RemoteScorer {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RemoteScorer{
		endpoint: strings.TrimSpace(endpoint),
		client:   httpclient.New(timeout),
	}
}

func (s *RemoteScorer) Score(ctx context.Context, content string) (float64, error) {
	if s.endpoint == "" {
		return 0, fmt.Errorf("toxicity endpoint is not configured")
	}

	body, err := json.Marshal(scoreRequest{Text: content})
	if err != nil {
		return 0, fmt.Errorf("encode toxicity request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build toxicity request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("call toxicity endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return 0, fmt.Errorf("toxicity endpoint returned %d", resp.StatusCode)
	}

	var payload scoreResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode toxicity response: %w", err)
	}
	if payload.Score == nil {
		return 0, fmt.Errorf("toxicity response has no score")
	}
	score := *payload.Score
	if score < 0 || score > 1 {
		return 0, fmt.Errorf("toxicity score %v out of range", score)
	}
	return score, nil
}
