package amqp

import (
	"encoding/json"
	"time"
)

// RunRequestMessage asks the worker to execute one classification run.
// Strategy may be empty, in which case the worker uses its configured
// default.
type RunRequestMessage struct {
	Strategy  string    `json:"strategy,omitempty"`
	Requested time.Time `json:"requested"`
}

// RunCompletedMessage announces a finished run and its label distribution.
type RunCompletedMessage struct {
	RunID       string         `json:"runId"`
	Accounts    int            `json:"accounts"`
	StageCounts map[string]int `json:"stageCounts"`
	Finished    time.Time      `json:"finished"`
}

// NewRunRequestMessage creates a run request for the given strategy.
func NewRunRequestMessage(strategy string) *RunRequestMessage {
	return &RunRequestMessage{
		Strategy:  strategy,
		Requested: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RunRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func RunRequestMessageFromJSON(data []byte) (*RunRequestMessage, error) {
	var msg RunRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ToJSON converts the message to JSON bytes
func (m *RunCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func RunCompletedMessageFromJSON(data []byte) (*RunCompletedMessage, error) {
	var msg RunCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
