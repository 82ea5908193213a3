package domain

import "time"

type LifecycleAction string

const (
	ActionAdded   LifecycleAction = "added"
	ActionPaused  LifecycleAction = "paused"
	ActionResumed LifecycleAction = "resumed"
	ActionRemoved LifecycleAction = "removed"
)

// LifecycleEvent records the outcome of a successful transfer command.
type LifecycleEvent struct {
	TransferID TransferID      `json:"transferId"`
	Name       string          `json:"name"`
	Action     LifecycleAction `json:"action"`
	Status     TransferStatus  `json:"status,omitempty"`
	Source     string          `json:"source,omitempty"`
	At         time.Time       `json:"at"`
}
