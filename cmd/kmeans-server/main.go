package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/kmeans-viz/kmeans-viz/internal/config"
	"github.com/kmeans-viz/kmeans-viz/internal/server"
	"golang.org/x/exp/rand"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	host := flag.String("host", "", "Override listen host")
	seed := flag.Uint64("seed", 0, "Random seed (0 uses the clock)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}

	broadcaster := server.NewBroadcaster()
	srv := server.NewServer(cfg, broadcaster, rand.NewSource(*seed))

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Starting kmeans service (seed %d)", *seed)
	if err := server.ListenAndServe(ctx, cfg.Addr(), mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Shut down")
}
