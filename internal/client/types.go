package client

import (
	"encoding/json"
	"time"
)

// MessageType mirrors the server's feed event names.
type MessageType string

const (
	MsgDataset     MessageType = "dataset"
	MsgInitialized MessageType = "initialized"
	MsgStep        MessageType = "step"
	MsgConverged   MessageType = "converged"
	MsgReset       MessageType = "reset"
)

type WSMessage struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// ModelEvent is the payload of every feed message.
type ModelEvent struct {
	Points    int       `json:"points"`
	K         int       `json:"k,omitempty"`
	Method    string    `json:"method,omitempty"`
	Iteration int       `json:"iteration"`
	Inertia   float64   `json:"inertia,omitempty"`
	Time      time.Time `json:"time"`
}

// Status is returned by /api/status.
type Status struct {
	Points      int     `json:"points"`
	K           int     `json:"k"`
	Initialized bool    `json:"initialized"`
	Iteration   int     `json:"iteration"`
	UptimeSec   float64 `json:"uptimeSec"`
	RSSBytes    uint64  `json:"rssBytes"`
	CPUPercent  float64 `json:"cpuPercent"`
	Clients     int     `json:"clients"`
}
