package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/transcript-workbench/internal/api"
	"github.com/airenas/transcript-workbench/internal/metrics"
	"github.com/airenas/transcript-workbench/internal/utils"
	"github.com/google/uuid"
)

// Client communicates with the transcription API
type Client struct {
	httpclient  *http.Client
	baseURL     string
	timeout     time.Duration
	longTimeout time.Duration
}

// NewClient creates a transcription API client.
// timeout is used for plain reads and writes, longTimeout for uploads and AI calls
func NewClient(baseURL string, timeout, longTimeout time.Duration) (*Client, error) {
	res := Client{}
	if baseURL == "" {
		return nil, fmt.Errorf("no baseURL")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("wrong baseURL '%s': %w", baseURL, err)
	}
	res.baseURL = strings.TrimSuffix(baseURL, "/")
	res.timeout = timeout
	if res.timeout <= 0 {
		res.timeout = time.Second * 10
	}
	res.longTimeout = longTimeout
	if res.longTimeout <= 0 {
		res.longTimeout = time.Minute * 3
	}
	res.httpclient = apiHTTPClient()
	goapp.Log.Info().Str("url", res.baseURL).Dur("timeout", res.timeout).Dur("longTimeout", res.longTimeout).Msg("API client")
	return &res, nil
}

// ListJobs - GET /transcripts
func (c *Client) ListJobs(ctx context.Context) ([]*api.Job, error) {
	var res []*api.Job
	if err := c.invoke(ctx, "list", http.MethodGet, "/transcripts", nil, "", c.timeout, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// CreateJob uploads audio - POST /transcripts
func (c *Client) CreateJob(ctx context.Context, fileName string, r io.Reader) (*api.CreateResponse, error) {
	body, contentType, err := multipartBody(fileName, r)
	if err != nil {
		return nil, err
	}
	res := &api.CreateResponse{}
	if err := c.invoke(ctx, "create", http.MethodPost, "/transcripts", body, contentType, c.longTimeout, res); err != nil {
		return nil, err
	}
	if res.TranscriptID == "" {
		return nil, fmt.Errorf("no transcript_id in response")
	}
	return res, nil
}

// GetTranscript - GET /transcripts/{id}
func (c *Client) GetTranscript(ctx context.Context, id string) (*api.TranscriptDetail, error) {
	p, err := transcriptPath(id)
	if err != nil {
		return nil, err
	}
	res := &api.TranscriptDetail{}
	if err := c.invoke(ctx, "get", http.MethodGet, p, nil, "", c.timeout, res); err != nil {
		return nil, err
	}
	return res, nil
}

// SaveImproved stores edited sentences - PUT /transcripts/{id}
func (c *Client) SaveImproved(ctx context.Context, id string, sentences []api.Sentence) error {
	p, err := transcriptPath(id)
	if err != nil {
		return err
	}
	if sentences == nil {
		sentences = []api.Sentence{}
	}
	b, err := jsonBody(api.UpdateRequest{ImprovedTranscript: api.ImprovedTranscript{Sentences: sentences}})
	if err != nil {
		return err
	}
	return c.invoke(ctx, "update", http.MethodPut, p, b, "application/json", c.timeout, &api.UpdateResponse{})
}

// Transcribe runs single shot transcription without a job - POST /transcribe
func (c *Client) Transcribe(ctx context.Context, fileName string, r io.Reader) (*api.TranscribeResponse, error) {
	body, contentType, err := multipartBody(fileName, r)
	if err != nil {
		return nil, err
	}
	res := &api.TranscribeResponse{}
	if err := c.invoke(ctx, "transcribe", http.MethodPost, "/transcribe", body, contentType, c.longTimeout, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Improve asks AI to combine both transcripts - POST /improve
func (c *Client) Improve(ctx context.Context, whisper, corti string) ([]api.Sentence, error) {
	b, err := jsonBody(api.ImproveRequest{WhisperTranscription: whisper, CortiTranscription: corti})
	if err != nil {
		return nil, err
	}
	res := &api.ImproveResponse{}
	if err := c.invoke(ctx, "improve", http.MethodPost, "/improve", b, "application/json", c.longTimeout, res); err != nil {
		return nil, err
	}
	if res.Error != "" {
		return nil, &AppError{Msg: res.Error}
	}
	return res.Sentences, nil
}

// Manuscript generates a manuscript on topic - POST /manuscript
func (c *Client) Manuscript(ctx context.Context, topic string) (*api.Manuscript, error) {
	b, err := jsonBody(api.ManuscriptRequest{Topic: topic})
	if err != nil {
		return nil, err
	}
	res := &api.Manuscript{}
	if err := c.invoke(ctx, "manuscript", http.MethodPost, "/manuscript", b, "application/json", c.longTimeout, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) invoke(ctx context.Context, name, method, path string, body io.Reader, contentType string,
	timeout time.Duration, res interface{}) error {
	defer utils.MeasureTime(name, time.Now())
	start := time.Now()
	err := c.do(ctx, method, path, body, contentType, timeout, res)
	m := metrics.Get()
	m.UpstreamDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	m.UpstreamRequests.WithLabelValues(name, resultLabel(err)).Inc()
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string,
	timeout time.Duration, res interface{}) error {
	ctx, cancelF := context.WithTimeout(ctx, timeout)
	defer cancelF()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	goapp.Log.Debug().Str("method", method).Str("url", req.URL.String()).Msg("call")
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1000))
		return &HTTPError{Code: resp.StatusCode, URL: req.URL.String(), Msg: errorMessage(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(res); err != nil {
		return fmt.Errorf("can't decode '%s' response: %w", req.URL.String(), err)
	}
	return nil
}

// CheckID returns ErrBadID if id is not a transcript id
func CheckID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w '%s'", ErrBadID, id)
	}
	return nil
}

func transcriptPath(id string) (string, error) {
	if err := CheckID(id); err != nil {
		return "", err
	}
	return "/transcripts/" + url.PathEscape(id), nil
}

func jsonBody(v interface{}) (io.Reader, error) {
	b := new(bytes.Buffer)
	if err := json.NewEncoder(b).Encode(v); err != nil {
		return nil, err
	}
	return b, nil
}

func multipartBody(fileName string, r io.Reader) (io.Reader, string, error) {
	if r == nil {
		return nil, "", fmt.Errorf("no file data")
	}
	b := new(bytes.Buffer)
	mw := multipart.NewWriter(b)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", fmt.Errorf("copy file data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return b, mw.FormDataContentType(), nil
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if he, ok := err.(*HTTPError); ok {
		return fmt.Sprintf("%dxx", he.Code/100)
	}
	if _, ok := err.(*AppError); ok {
		return "app_error"
	}
	return "error"
}

func apiHTTPClient() *http.Client {
	return &http.Client{Transport: newTransport()}
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxConnsPerHost = 10
	res.MaxIdleConns = 5
	res.MaxIdleConnsPerHost = 5
	res.IdleConnTimeout = 90 * time.Second
	return res
}
