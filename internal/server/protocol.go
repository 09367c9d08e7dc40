package server

import "time"

// MessageType identifies an event on the /ws feed.
type MessageType string

const (
	MsgDataset     MessageType = "dataset"
	MsgInitialized MessageType = "initialized"
	MsgStep        MessageType = "step"
	MsgConverged   MessageType = "converged"
	MsgReset       MessageType = "reset"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

// EventPayload describes the model right after the change named by the
// message type.
type EventPayload struct {
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

type messageBody struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type initRequest struct {
	K          int    `json:"k"`
	InitMethod string `json:"initMethod"`
}

type manualInitRequest struct {
	Centroids [][]float64 `json:"centroids"`
}

type iterRequest struct {
	K int `json:"k"`
}
