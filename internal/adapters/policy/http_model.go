package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"waste-dispatch-service/internal/adapters/httpjson"
)

type predictRequest struct {
	Observation []float32 `json:"observation"`
}

type predictResponse struct {
	Action *int `json:"action"`
}

// HTTPModel serves a trained policy running behind an HTTP endpoint that
// accepts {"observation": [...]} and answers {"action": n}.
type HTTPModel struct {
	client httpjson.Requester
	url    string
}

func NewHTTPModel(url, apiKey string, timeout time.Duration) (*HTTPModel, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("policy model url is empty")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPModel{
		client: httpjson.NewRequester(apiKey, timeout),
		url:    strings.TrimRight(url, "/"),
	}, nil
}

func (m *HTTPModel) Predict(ctx context.Context, observation []float32) (int, error) {
	payload, err := json.Marshal(predictRequest{Observation: observation})
	if err != nil {
		return 0, fmt.Errorf("predict: encode: %w", err)
	}

	req, err := m.client.NewRequest(ctx, http.MethodPost, m.url+"/predict", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	defer resp.Body.Close()

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("predict: decode: %w", err)
	}
	if out.Action == nil {
		return 0, errors.New("predict: response has no action")
	}
	return *out.Action, nil
}
