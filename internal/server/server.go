// Package server is the clustering service the terminal client drives. It
// keeps one dataset and at most one K-Means model in memory and answers each
// request with either a rendered frame or a small JSON message.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kmeans-viz/kmeans-viz/internal/config"
	"github.com/kmeans-viz/kmeans-viz/internal/dataset"
	"github.com/kmeans-viz/kmeans-viz/internal/kmeans"
	"github.com/kmeans-viz/kmeans-viz/internal/render"
	"github.com/muesli/clusters"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/exp/rand"
)

// convergedMessage is the step answer that tells the client nothing moved.
const convergedMessage = "Converged"

type Server struct {
	config         *config.Config
	renderer       *render.Renderer
	broadcaster    *Broadcaster
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	started        time.Time
	proc           *process.Process

	mu    sync.Mutex
	src   rand.Source
	data  clusters.Observations
	model *kmeans.Model
}

// NewServer creates a server with no dataset. src seeds dataset generation
// and random initialization.
func NewServer(cfg *config.Config, broadcaster *Broadcaster, src rand.Source) *Server {
	s := &Server{
		config:      cfg,
		broadcaster: broadcaster,
		renderer: render.New(render.Options{
			Width:        cfg.Render.Width,
			Height:       cfg.Render.Height,
			PointRadius:  cfg.Render.PointRadius,
			CenterRadius: cfg.Render.CenterRadius,
		}),
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		started:        time.Now(),
		src:            src,
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		s.proc = p
	} else {
		log.Printf("process stats unavailable: %v", err)
	}

	return s
}

// SetupRoutes registers the HTTP handlers on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/generate_dataset", s.post(s.handleGenerate))
	mux.HandleFunc("/get_dataset", s.handleGetDataset)
	mux.HandleFunc("/initialize_kmeans", s.post(s.handleInitialize))
	mux.HandleFunc("/initialize_manual_kmeans", s.post(s.handleInitializeManual))
	mux.HandleFunc("/step_kmeans", s.post(s.handleStep))
	mux.HandleFunc("/converge_kmeans", s.post(s.handleConverge))
	mux.HandleFunc("/reset_kmeans", s.post(s.handleReset))
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "kmeans-viz service\n\nConnect with: kmeans-viz --url http://%s\n", r.Host)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	d := s.config.Dataset
	s.mu.Lock()
	defer s.mu.Unlock()

	obs, centers, err := dataset.Blobs(dataset.Params{
		Samples:    d.Samples,
		MinCenters: d.MinCenters,
		MaxCenters: d.MaxCenters,
		Spread:     d.CenterSpread,
		StdDev:     d.StdDev,
	}, s.src)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.data = obs
	s.model = nil
	log.Printf("generated %d points around %d blobs", len(obs), len(centers))

	s.publish(MsgDataset, "")
	writeJSON(w, http.StatusOK, messageBody{Message: "Dataset generated successfully"})
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		writeError(w, http.StatusBadRequest, "Dataset not initialized")
		return
	}
	s.writeFrame(w)
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	method, err := kmeans.ParseMethod(req.InitMethod)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		writeError(w, http.StatusBadRequest, "Dataset not initialized")
		return
	}
	m, err := kmeans.New(s.data, req.K, s.src)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := m.Initialize(method); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.model = m
	log.Printf("initialized k=%d with %s", req.K, method)

	s.publish(MsgInitialized, string(method))
	s.writeFrame(w)
}

func (s *Server) handleInitializeManual(w http.ResponseWriter, r *http.Request) {
	var req manualInitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Centroids) == 0 {
		writeError(w, http.StatusBadRequest, "no centroids given")
		return
	}
	centers := make([]clusters.Coordinates, len(req.Centroids))
	for i, c := range req.Centroids {
		centers[i] = clusters.Coordinates(c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		writeError(w, http.StatusBadRequest, "Dataset not initialized")
		return
	}
	m, err := kmeans.New(s.data, len(centers), s.src)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := m.SetCenters(centers); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.model = m
	log.Printf("initialized k=%d with manual centroids", len(centers))

	s.publish(MsgInitialized, "manual")
	s.writeFrame(w)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	s.iterate(w, r, func(m *kmeans.Model) (bool, error) {
		moved, err := m.Step()
		return !moved, err
	})
}

func (s *Server) handleConverge(w http.ResponseWriter, r *http.Request) {
	s.iterate(w, r, func(m *kmeans.Model) (bool, error) {
		n, converged, err := m.Converge(s.config.KMeans.MaxIterations)
		if err == nil && !converged {
			log.Printf("converge stopped after %d iterations without a fixed point", n)
		}
		// Converge always answers with the final frame.
		return false, err
	})
}

// iterate runs fn against the current model after the shared checks. When
// fn reports convergence the client gets the JSON marker instead of a frame.
func (s *Server) iterate(w http.ResponseWriter, r *http.Request, fn func(*kmeans.Model) (bool, error)) {
	var req iterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		writeError(w, http.StatusBadRequest, "Dataset not initialized")
		return
	}
	if s.model == nil {
		writeError(w, http.StatusBadRequest, "Algorithm has not initialized")
		return
	}
	if req.K != 0 && req.K != s.model.K() {
		writeError(w, http.StatusConflict,
			fmt.Sprintf("k=%d does not match the initialized k=%d; reset to apply it", req.K, s.model.K()))
		return
	}

	converged, err := fn(s.model)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if converged {
		s.publish(MsgConverged, "")
		writeJSON(w, http.StatusOK, messageBody{Message: convergedMessage})
		return
	}

	s.publish(MsgStep, "")
	s.writeFrame(w)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.model = nil
	s.publish(MsgReset, "")
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, messageBody{Message: "KMeans reset successfully"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

// Status snapshots the model and the server process.
func (s *Server) Status() Status {
	s.mu.Lock()
	st := Status{
		Points:    len(s.data),
		UptimeSec: time.Since(s.started).Seconds(),
		Clients:   s.broadcaster.ClientCount(),
	}
	if s.model != nil {
		st.Initialized = true
		st.K = s.model.K()
		st.Iteration = s.model.Iteration()
	}
	s.mu.Unlock()

	if s.proc != nil {
		if mem, err := s.proc.MemoryInfo(); err == nil {
			st.RSSBytes = mem.RSS
		}
		if cpu, err := s.proc.CPUPercent(); err == nil {
			st.CPUPercent = cpu
		}
	}
	return st
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	log.Printf("WebSocket client connected: %s", r.RemoteAddr)
	c := s.broadcaster.AddClient(conn)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// writeFrame renders the current state. Callers hold s.mu.
func (s *Server) writeFrame(w http.ResponseWriter) {
	var (
		assign  []int
		centers []clusters.Coordinates
	)
	if s.model != nil {
		assign = s.model.Assignment()
		centers = s.model.Centers()
	}

	png, err := s.renderer.PNG(s.data, assign, centers)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

// publish sends the current model summary to feed clients. Callers hold s.mu.
func (s *Server) publish(t MessageType, method string) {
	p := EventPayload{Points: len(s.data), Method: method, Time: time.Now()}
	if s.model != nil {
		p.K = s.model.K()
		p.Iteration = s.model.Iteration()
		p.Inertia = s.model.Inertia()
	}
	s.broadcaster.Publish(t, p)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := parsed.Hostname()
	return parsed.Host == r.Host || host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// decodeBody reads an optional JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("invalid request body: %w", err)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, messageBody{Error: msg})
}

// ListenAndServe serves handler on addr until ctx is cancelled, then shuts
// down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
