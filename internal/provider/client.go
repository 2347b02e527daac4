package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/blustreamin/corpus-engine/internal/config"
)

const (
	taskPostPath = "/v3/keywords_data/google_ads/search_volume/task_post"
	taskGetPath  = "/v3/keywords_data/google_ads/search_volume/task_get"
	pingPath     = "/v3/appendix/user_data"

	requestTimeout = 45 * time.Second

	// location/language of the corpus market
	locationCode = 2356 // India
	languageCode = "en"
)

// Client is the two-phase async task protocol the rebuild pipeline consumes.
// Implementations never rate-limit themselves; all calls are expected to run
// inside the rate-limited executor.
type Client interface {
	SubmitVolumeTask(ctx context.Context, keywords []string) CallResult
	PollTask(ctx context.Context, taskID string) CallResult
	Ping(ctx context.Context) error
}

type httpClient struct {
	baseURL     string
	login       string
	password    string
	proxyURL    string
	proxyAPIKey string
	viaProxy    bool
	hc          *http.Client
}

var _ Client = (*httpClient)(nil)

func NewClient(cfg *config.Config) Client {
	return &httpClient{
		baseURL:     strings.TrimSuffix(cfg.Provider.BaseURL, "/"),
		login:       cfg.Provider.Login,
		password:    cfg.Provider.Password,
		proxyURL:    strings.TrimSuffix(cfg.Provider.ProxyURL, "/"),
		proxyAPIKey: cfg.Provider.ProxyAPIKey,
		viaProxy:    cfg.Provider.Mode == config.ProviderModeProxy,
		hc:          &http.Client{Timeout: requestTimeout},
	}
}

func (c *httpClient) SubmitVolumeTask(ctx context.Context, keywords []string) CallResult {
	payload := []map[string]any{{
		"keywords":      keywords,
		"location_code": locationCode,
		"language_code": languageCode,
	}}
	res := c.post(ctx, taskPostPath, payload)
	if res.Err != nil || !res.OK {
		return res
	}
	if res.TaskID == "" {
		res.OK = false
		res.Message = "task accepted but no task id returned"
	}
	return res
}

func (c *httpClient) PollTask(ctx context.Context, taskID string) CallResult {
	return c.post(ctx, fmt.Sprintf("%s/%s", taskGetPath, taskID), nil)
}

func (c *httpClient) Ping(ctx context.Context) error {
	res := c.post(ctx, pingPath, nil)
	if res.Err != nil {
		return res.Err
	}
	if !res.OK {
		return fmt.Errorf("provider ping rejected: http=%d status=%d %s", res.HTTPStatus, res.LogicalStatus, res.Message)
	}
	return nil
}

// wire shapes of the provider response envelope
type envelope struct {
	StatusCode int    `json:"status_code"`
	Tasks      []task `json:"tasks"`
}

type task struct {
	ID            string       `json:"id"`
	StatusCode    int          `json:"status_code"`
	StatusMessage string       `json:"status_message"`
	Result        []taskResult `json:"result"`
}

type taskResult struct {
	Keyword      string `json:"keyword"`
	SearchVolume *int64 `json:"search_volume"`
}

func (c *httpClient) post(ctx context.Context, path string, payload any) CallResult {
	start := time.Now()

	var req *http.Request
	var err error
	if c.viaProxy {
		req, err = c.proxyRequest(ctx, path, payload)
	} else {
		req, err = c.directRequest(ctx, path, payload)
	}
	if err != nil {
		return CallResult{Err: errors.Wrap(err, "building provider request")}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return CallResult{Err: errors.Wrap(err, "provider request failed")}
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode == http.StatusTooManyRequests {
		return CallResult{HTTPStatus: resp.StatusCode, RateLimited: true, LatencyMs: latency}
	}
	if resp.StatusCode >= 500 {
		return CallResult{HTTPStatus: resp.StatusCode, Message: resp.Status, LatencyMs: latency}
	}

	var env envelope
	if c.viaProxy {
		// the relay wraps the provider body in {"data": ...}
		var wrapper struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
			return CallResult{HTTPStatus: resp.StatusCode, Err: errors.Wrap(err, "decoding proxy envelope")}
		}
		body := wrapper.Data
		if len(body) == 0 {
			return CallResult{HTTPStatus: resp.StatusCode, Err: errors.New("empty proxy envelope")}
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return CallResult{HTTPStatus: resp.StatusCode, Err: errors.Wrap(err, "decoding provider body")}
		}
	} else {
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return CallResult{HTTPStatus: resp.StatusCode, Err: errors.Wrap(err, "decoding provider body")}
		}
	}

	res := CallResult{HTTPStatus: resp.StatusCode, LogicalStatus: env.StatusCode, LatencyMs: latency}
	if len(env.Tasks) > 0 {
		t := env.Tasks[0]
		res.TaskID = t.ID
		res.LogicalStatus = t.StatusCode
		res.Message = t.StatusMessage
		for _, r := range t.Result {
			var volume int64
			if r.SearchVolume != nil {
				volume = *r.SearchVolume
			}
			res.Rows = append(res.Rows, VolumeRow{Keyword: r.Keyword, Volume: volume})
		}
	}

	if isRateLimitMessage(res.Message) {
		res.RateLimited = true
		return res
	}

	res.OK = resp.StatusCode < 400 &&
		(res.LogicalStatus == StatusOK || res.LogicalStatus == StatusTaskCreated || res.InProgress())
	return res
}

func (c *httpClient) directRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	body, err := marshalBody(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.login + ":" + c.password))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *httpClient) proxyRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	wrapped := map[string]any{
		"path":    strings.TrimPrefix(path, "/"),
		"payload": payload,
		"method":  http.MethodPost,
	}
	body, err := marshalBody(wrapped)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.proxyURL+"/dfs/proxy", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.proxyAPIKey)
	return req, nil
}

func marshalBody(payload any) (*bytes.Reader, error) {
	if payload == nil {
		return bytes.NewReader(nil), nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(raw), nil
}

// isRateLimitMessage catches rate limiting the provider reports inside a 200
// response instead of a 429.
func isRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rates limit") || strings.Contains(lower, "limit per minute")
}
