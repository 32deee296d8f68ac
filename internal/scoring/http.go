package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/scribeworks/backend/internal/models"
)

// HTTPAdapter calls an external OCR/similarity service.
//
// Request:  POST {url} {"typed_content": "...", "reference_image_url": "...", "reference_text": "..."}
// Response: {"score": 0.93} or {"data": {"ocr_match_score": 0.93}}
type HTTPAdapter struct {
	url    string
	client *http.Client
}

func NewHTTPAdapter(url string, client *http.Client) *HTTPAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPAdapter{url: url, client: client}
}

type scoreRequest struct {
	TypedContent      string `json:"typed_content"`
	ReferenceImageURL string `json:"reference_image_url,omitempty"`
	ReferenceText     string `json:"reference_text,omitempty"`
}

func (a *HTTPAdapter) Score(ctx context.Context, content string, ref models.Reference) (float64, error) {
	body, err := json.Marshal(scoreRequest{
		TypedContent:      content,
		ReferenceImageURL: ref.ImageURL,
		ReferenceText:     ref.Text,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: scoring service returned %d", ErrUnavailable, resp.StatusCode)
	}

	result := gjson.GetManyBytes(payload, "score", "data.ocr_match_score")
	for _, r := range result {
		if r.Exists() && r.Type == gjson.Number {
			return checkScore(r.Float())
		}
	}
	return 0, fmt.Errorf("%w: response has no score", ErrUnavailable)
}
