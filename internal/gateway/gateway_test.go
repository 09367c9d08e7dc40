package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/kmeans-viz/kmeans-viz/internal/coords"
)

var fakePNG = []byte("\x89PNG fake frame")

type recordingSurface struct {
	frames [][]byte
}

func (s *recordingSurface) Paint(png []byte) error {
	s.frames = append(s.frames, png)
	return nil
}

func writePNG(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/png")
	w.Write(fakePNG)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func newTestGateway(t *testing.T, h http.HandlerFunc) (*HTTPGateway, *recordingSurface) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	surface := &recordingSurface{}
	return NewHTTPGateway(srv.URL, 0, surface), surface
}

func TestStepImage(t *testing.T) {
	g, surface := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/step_kmeans" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body iterRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.K != 3 {
			t.Errorf("step body k = %d (err %v), want 3", body.K, err)
		}
		writePNG(w)
	})

	out, err := g.Step(context.Background(), 3)
	if err != nil {
		t.Fatalf("Step() error: %v", err)
	}
	if out.Converged() || out.Kind != OutcomeImage {
		t.Errorf("Step() kind = %v, want image", out.Kind)
	}
	if len(surface.frames) != 1 {
		t.Errorf("painted %d frames, want 1", len(surface.frames))
	}
}

func TestStepConverged(t *testing.T) {
	g, surface := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Converged"})
	})

	out, err := g.Step(context.Background(), 3)
	if err != nil {
		t.Fatalf("Step() error: %v", err)
	}
	if !out.Converged() {
		t.Errorf("Step() kind = %v, want converged", out.Kind)
	}
	if len(surface.frames) != 0 {
		t.Errorf("painted %d frames on convergence, want 0", len(surface.frames))
	}
}

func TestStepUnexpected(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"json without marker", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
		}},
		{"plain text", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("Converged"))
		}},
		{"png bytes labelled json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write(fakePNG)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGateway(t, tt.handler)
			_, err := g.Step(context.Background(), 2)
			if !errors.Is(err, ErrUnexpectedResponse) {
				t.Errorf("Step() error = %v, want ErrUnexpectedResponse", err)
			}
		})
	}
}

func TestStatusErrorIsTransport(t *testing.T) {
	g, surface := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Dataset not initialized"})
	})

	err := g.Converge(context.Background(), 3)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Converge() error = %v, want ErrTransport", err)
	}
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("Converge() error %T is not a *StatusError", err)
	}
	if serr.Code != http.StatusBadRequest || serr.Message != "Dataset not initialized" {
		t.Errorf("StatusError = %+v", serr)
	}
	if len(surface.frames) != 0 {
		t.Errorf("painted %d frames on failure, want 0", len(surface.frames))
	}
}

func TestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := NewHTTPGateway(url, 0, nil)
	if err := g.Reset(context.Background()); !errors.Is(err, ErrTransport) {
		t.Errorf("Reset() error = %v, want ErrTransport", err)
	}
}

func TestGenerateFetchesImage(t *testing.T) {
	var paths []string
	g, surface := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/generate_dataset":
			writeJSON(w, http.StatusOK, map[string]string{"message": "Dataset generated successfully"})
		case "/get_dataset":
			writePNG(w)
		default:
			http.NotFound(w, r)
		}
	})

	if err := g.GenerateDataset(context.Background()); err != nil {
		t.Fatalf("GenerateDataset() error: %v", err)
	}
	want := []string{"POST /generate_dataset", "GET /get_dataset"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("requests = %v, want %v", paths, want)
	}
	if len(surface.frames) != 1 {
		t.Errorf("painted %d frames, want 1", len(surface.frames))
	}
}

func TestInitializeManualPreservesOrder(t *testing.T) {
	var got manualInitRequest
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/initialize_manual_kmeans" {
			t.Errorf("path = %s, want /initialize_manual_kmeans", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		writePNG(w)
	})

	pts := []coords.Point{{X: 1, Y: 1}, {X: -2, Y: 3}}
	if err := g.Initialize(context.Background(), 2, "manual", pts); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	want := [][2]float64{{1, 1}, {-2, 3}}
	if !reflect.DeepEqual(got.Centroids, want) {
		t.Errorf("centroids = %v, want %v", got.Centroids, want)
	}
}

func TestInitializeAuto(t *testing.T) {
	var got initRequest
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/initialize_kmeans" {
			t.Errorf("path = %s, want /initialize_kmeans", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		writePNG(w)
	})

	if err := g.Initialize(context.Background(), 4, "kmeans++", nil); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if got.K != 4 || got.InitMethod != "kmeans++" {
		t.Errorf("request = %+v, want k=4 initMethod=kmeans++", got)
	}
}

func TestInitializeManualWrongCount(t *testing.T) {
	called := false
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	err := g.Initialize(context.Background(), 3, "manual", []coords.Point{{X: 1, Y: 1}})
	if !errors.Is(err, ErrBadRequest) {
		t.Errorf("Initialize() error = %v, want ErrBadRequest", err)
	}
	if called {
		t.Error("request sent despite wrong centroid count")
	}
}
