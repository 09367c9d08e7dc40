package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Dataset DatasetConfig `yaml:"dataset"`
	KMeans  KMeansConfig  `yaml:"kmeans"`
	Render  RenderConfig  `yaml:"render"`
	Client  ClientConfig  `yaml:"client"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatasetConfig controls synthetic blob generation.
type DatasetConfig struct {
	Samples      int     `yaml:"samples"`
	MinCenters   int     `yaml:"min_centers"`
	MaxCenters   int     `yaml:"max_centers"`
	CenterSpread float64 `yaml:"center_spread"`
	StdDev       float64 `yaml:"std_dev"`
}

type KMeansConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

type RenderConfig struct {
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	PointRadius  float64 `yaml:"point_radius"`
	CenterRadius float64 `yaml:"center_radius"`
}

// ClientConfig is read by the terminal front end only.
type ClientConfig struct {
	URL            string        `yaml:"url"`
	ClusterCount   int           `yaml:"cluster_count"`
	InitMethod     string        `yaml:"init_method"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	StatusInterval time.Duration `yaml:"status_interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3000,
			Host: "127.0.0.1",
		},
		Dataset: DatasetConfig{
			Samples:      300,
			MinCenters:   2,
			MaxCenters:   10,
			CenterSpread: 2.5,
			StdDev:       1,
		},
		KMeans: KMeansConfig{
			MaxIterations: 300,
		},
		Render: RenderConfig{
			Width:        500,
			Height:       500,
			PointRadius:  3,
			CenterRadius: 7,
		},
		Client: ClientConfig{
			URL:            "http://127.0.0.1:3000",
			ClusterCount:   3,
			InitMethod:     "random",
			StatusInterval: 5 * time.Second,
		},
	}
}

// Load reads a YAML config on top of the defaults. A missing file is not an
// error; the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects values the client or server cannot run with.
func (c *Config) Validate() error {
	if c.Dataset.Samples <= 0 {
		return fmt.Errorf("dataset.samples must be positive, got %d", c.Dataset.Samples)
	}
	if c.Dataset.MinCenters < 1 || c.Dataset.MaxCenters < c.Dataset.MinCenters {
		return fmt.Errorf("dataset centers range [%d, %d] is invalid", c.Dataset.MinCenters, c.Dataset.MaxCenters)
	}
	if c.KMeans.MaxIterations <= 0 {
		return fmt.Errorf("kmeans.max_iterations must be positive, got %d", c.KMeans.MaxIterations)
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("render size %dx%d is invalid", c.Render.Width, c.Render.Height)
	}
	if c.Client.ClusterCount < 1 {
		return fmt.Errorf("client.cluster_count must be at least 1, got %d", c.Client.ClusterCount)
	}
	return nil
}

// Addr returns the listen address for the collaborator server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
