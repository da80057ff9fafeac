package model

import (
	"math"
	"time"
)

// DeliveryStatus is the terminal state of one recipient within one run.
type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliverySkipped DeliveryStatus = "skipped"
)

// DeliveryOutcome records exactly one attempt chain per (run, recipient).
// Immutable once produced.
type DeliveryOutcome struct {
	RecipientID int64 // Telegram id
	Username    string
	Status      DeliveryStatus
	Error       string
	Attempts    int
	At          time.Time
}

// RunState is the lifecycle of a whole broadcast run.
type RunState string

const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunCancelled RunState = "cancelled"
)

// Progress is the pollable mid-run view of a broadcast.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// BroadcastReport is the final projection over all outcomes of a run.
// Details always carry the full list; display truncation is a concern of
// the presentation layer.
type BroadcastReport struct {
	RunID       string            `json:"run_id"`
	State       RunState          `json:"state"`
	Total       int               `json:"total"`
	Sent        int               `json:"sent"`
	Failed      int               `json:"failed"`
	Skipped     int               `json:"skipped"`
	SuccessRate int               `json:"success_rate"`
	Details     []DeliveryOutcome `json:"details"`
}

// SuccessRate is sent/total*100 rounded to the nearest integer, 0 for an
// empty run.
func SuccessRate(sent, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(sent) / float64(total) * 100))
}
