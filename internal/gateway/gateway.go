// Package gateway talks to the clustering service. Every call performs one
// request/response exchange and, when the service answers with a plot, paints
// it onto the attached Surface.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/kmeans-viz/kmeans-viz/internal/coords"
)

var (
	// ErrTransport covers requests that could not complete or came back
	// with a non-success status.
	ErrTransport = errors.New("transport failure")
	// ErrUnexpectedResponse means the service answered 2xx with a payload
	// we do not understand.
	ErrUnexpectedResponse = errors.New("unexpected response")
	// ErrBadRequest is returned before anything is sent when the caller's
	// arguments cannot form a valid request.
	ErrBadRequest = errors.New("invalid request")
)

// ConvergedMessage is the marker the service sends when a step changes nothing.
const ConvergedMessage = "Converged"

// StatusError is a non-2xx answer. It unwraps to ErrTransport.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrTransport }

// Surface is whatever displays the plot.
type Surface interface {
	Paint(png []byte) error
}

// OutcomeKind tags a StepOutcome.
type OutcomeKind int

const (
	OutcomeImage OutcomeKind = iota + 1
	OutcomeConverged
)

// StepOutcome is the decoded answer to a step: either a new frame or the
// converged signal.
type StepOutcome struct {
	Kind  OutcomeKind
	Image []byte
}

func (o StepOutcome) Converged() bool { return o.Kind == OutcomeConverged }

// HTTPGateway implements the service contract over HTTP.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	surface Surface
}

// NewHTTPGateway targets the given base URL (e.g. "http://127.0.0.1:3000").
// A zero timeout waits for the service indefinitely.
func NewHTTPGateway(baseURL string, timeout time.Duration, surface Surface) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		surface: surface,
	}
}

type initRequest struct {
	K          int    `json:"k"`
	InitMethod string `json:"initMethod"`
}

type manualInitRequest struct {
	Centroids [][2]float64 `json:"centroids"`
}

type iterRequest struct {
	K int `json:"k"`
}

type messageBody struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GenerateDataset asks for a fresh dataset and then fetches its plot.
func (g *HTTPGateway) GenerateDataset(ctx context.Context) error {
	resp, err := g.do(ctx, http.MethodPost, "/generate_dataset", nil)
	if err != nil {
		return err
	}
	if resp.isImage() {
		return g.paint(resp.body)
	}
	return g.FetchCurrentImage(ctx)
}

// FetchCurrentImage paints the current state without changing it.
func (g *HTTPGateway) FetchCurrentImage(ctx context.Context) error {
	resp, err := g.do(ctx, http.MethodGet, "/get_dataset", nil)
	if err != nil {
		return err
	}
	if !resp.isImage() {
		return fmt.Errorf("%w: GET /get_dataset returned %q", ErrUnexpectedResponse, resp.contentType)
	}
	return g.paint(resp.body)
}

// Initialize places k starting centroids. Centroids must be given, with
// exactly k entries, when method is "manual" and must be empty otherwise.
func (g *HTTPGateway) Initialize(ctx context.Context, k int, method string, centroids []coords.Point) error {
	var (
		path string
		body interface{}
	)
	if method == "manual" {
		if len(centroids) != k {
			return fmt.Errorf("%w: manual initialization needs %d centroids, got %d", ErrBadRequest, k, len(centroids))
		}
		pairs := make([][2]float64, len(centroids))
		for i, p := range centroids {
			pairs[i] = p.Pair()
		}
		path, body = "/initialize_manual_kmeans", manualInitRequest{Centroids: pairs}
	} else {
		if len(centroids) > 0 {
			return fmt.Errorf("%w: centroids given for %q initialization", ErrBadRequest, method)
		}
		path, body = "/initialize_kmeans", initRequest{K: k, InitMethod: method}
	}

	resp, err := g.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if resp.isImage() {
		return g.paint(resp.body)
	}
	if resp.isJSON() {
		// Older services acknowledge with JSON and expect a follow-up fetch.
		return g.FetchCurrentImage(ctx)
	}
	return fmt.Errorf("%w: POST %s returned %q", ErrUnexpectedResponse, path, resp.contentType)
}

// Step runs one iteration. The result is decided by content type: a PNG is
// a new frame, JSON carrying the converged marker means nothing moved.
func (g *HTTPGateway) Step(ctx context.Context, k int) (StepOutcome, error) {
	resp, err := g.do(ctx, http.MethodPost, "/step_kmeans", iterRequest{K: k})
	if err != nil {
		return StepOutcome{}, err
	}

	switch {
	case resp.isImage():
		if err := g.paint(resp.body); err != nil {
			return StepOutcome{}, err
		}
		return StepOutcome{Kind: OutcomeImage, Image: resp.body}, nil
	case resp.isJSON():
		var m messageBody
		if err := json.Unmarshal(resp.body, &m); err != nil {
			return StepOutcome{}, fmt.Errorf("%w: step: %v", ErrUnexpectedResponse, err)
		}
		if m.Message == ConvergedMessage {
			return StepOutcome{Kind: OutcomeConverged}, nil
		}
		return StepOutcome{}, fmt.Errorf("%w: step answered %q", ErrUnexpectedResponse, m.Message)
	}
	return StepOutcome{}, fmt.Errorf("%w: step returned %q", ErrUnexpectedResponse, resp.contentType)
}

// Converge iterates to the fixed point and paints the final frame.
func (g *HTTPGateway) Converge(ctx context.Context, k int) error {
	resp, err := g.do(ctx, http.MethodPost, "/converge_kmeans", iterRequest{K: k})
	if err != nil {
		return err
	}
	if !resp.isImage() {
		return fmt.Errorf("%w: converge returned %q", ErrUnexpectedResponse, resp.contentType)
	}
	return g.paint(resp.body)
}

// Reset drops the clustering state on the service; the dataset is kept.
func (g *HTTPGateway) Reset(ctx context.Context) error {
	_, err := g.do(ctx, http.MethodPost, "/reset_kmeans", nil)
	return err
}

func (g *HTTPGateway) paint(png []byte) error {
	if g.surface == nil {
		return nil
	}
	if err := g.surface.Paint(png); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return nil
}

type response struct {
	contentType string
	body        []byte
}

func (r *response) isImage() bool { return r.contentType == "image/png" }
func (r *response) isJSON() bool  { return r.contentType == "application/json" }

func (g *HTTPGateway) do(ctx context.Context, method, path string, body interface{}) (*response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		log.Printf("gateway: %s %s: %v", method, path, err)
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("gateway: %s %s: read body: %v", method, path, err)
		return nil, fmt.Errorf("%w: %s %s: read body: %v", ErrTransport, method, path, err)
	}

	if resp.StatusCode >= 300 {
		serr := &StatusError{Method: method, Path: path, Code: resp.StatusCode, Message: errorText(data)}
		log.Printf("gateway: %v", serr)
		return nil, serr
	}

	ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return &response{contentType: ct, body: data}, nil
}

// errorText pulls the message out of a JSON error body, falling back to the
// raw text.
func errorText(data []byte) string {
	var m messageBody
	if json.Unmarshal(data, &m) == nil {
		if m.Error != "" {
			return m.Error
		}
		if m.Message != "" {
			return m.Message
		}
	}
	return strings.TrimSpace(string(data))
}
