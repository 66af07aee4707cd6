// Package events provides event management functionality.
package events

// EventType represents different event types
type EventType string

const (
	// Decision loop
	CycleStarted          EventType = "CYCLE_STARTED"
	ObservationsCollected EventType = "OBSERVATIONS_COLLECTED"
	PlanProduced          EventType = "PLAN_PRODUCED"
	ActionExecuted        EventType = "ACTION_EXECUTED"
	CycleCompleted        EventType = "CYCLE_COMPLETED"

	// Funds and positions
	TransferSent  EventType = "TRANSFER_SENT"
	SwapExecuted  EventType = "SWAP_EXECUTED"
	PolicyDenied  EventType = "POLICY_DENIED"
	DriftDetected EventType = "DRIFT_DETECTED"

	// Infrastructure
	BackupCompleted EventType = "BACKUP_COMPLETED"
	ErrorOccurred   EventType = "ERROR_OCCURRED"
)
