package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kmeans-viz/kmeans-viz/internal/app"
	"github.com/kmeans-viz/kmeans-viz/internal/client"
	"github.com/kmeans-viz/kmeans-viz/internal/config"
	"github.com/kmeans-viz/kmeans-viz/internal/gateway"
	"github.com/kmeans-viz/kmeans-viz/internal/lifecycle"
	"github.com/kmeans-viz/kmeans-viz/internal/notify"
	"github.com/kmeans-viz/kmeans-viz/internal/views/canvas"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	baseURL := flag.String("url", "", "Base URL of the kmeans service (overrides config)")
	k := flag.Int("k", 0, "Initial cluster count (overrides config)")
	method := flag.String("init", "", "Initial init method: random, farthest_first, kmeans++, manual")
	timeout := flag.Duration("timeout", -1, "Per-request timeout, 0 waits indefinitely (overrides config)")
	logPath := flag.String("log", "", "Write logs to this file (default: discard)")
	noFeed := flag.Bool("no-feed", false, "Do not follow the service's live event feed")
	flag.Parse()

	if *logPath != "" {
		f, err := tea.LogToFile(*logPath, "kmeans-viz")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.Client.URL = *baseURL
	}
	if *k > 0 {
		cfg.Client.ClusterCount = *k
	}
	if *method != "" {
		cfg.Client.InitMethod = *method
	}
	if *timeout >= 0 {
		cfg.Client.RequestTimeout = *timeout
	}

	initMethod, err := lifecycle.ParseInitMethod(cfg.Client.InitMethod)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	surface := canvas.NewSurface()
	notes := notify.New()
	gw := gateway.NewHTTPGateway(cfg.Client.URL, cfg.Client.RequestTimeout, surface)
	ctrl := lifecycle.New(lifecycle.NewSession(cfg.Client.ClusterCount, initMethod), gw, notes)

	deps := app.Deps{
		Controller:  ctrl,
		Notes:       notes,
		Surface:     surface,
		Status:      client.NewStatusClient(cfg.Client.URL),
		StatusEvery: cfg.Client.StatusInterval,
	}
	if !*noFeed {
		feedURL, err := client.FeedURL(cfg.Client.URL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		deps.Feed = client.NewFeedClient(feedURL)
	}

	log.Printf("connecting to %s (k=%d, init=%s, timeout=%v)", cfg.Client.URL, cfg.Client.ClusterCount, initMethod, cfg.Client.RequestTimeout)

	p := tea.NewProgram(app.New(deps), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
