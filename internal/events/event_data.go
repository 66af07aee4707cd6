package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// CycleStartedData contains data for CycleStarted events
type CycleStartedData struct {
	RunID  string `json:"run_id"`
	DryRun bool   `json:"dry_run"`
}

// EventType returns the event type for CycleStartedData
func (d *CycleStartedData) EventType() EventType {
	return CycleStarted
}

// ObservationsCollectedData contains data for ObservationsCollected events
type ObservationsCollectedData struct {
	RunID    string `json:"run_id"`
	Chars    int    `json:"chars"`
	Failures int    `json:"failures"`
}

// EventType returns the event type for ObservationsCollectedData
func (d *ObservationsCollectedData) EventType() EventType {
	return ObservationsCollected
}

// PlanProducedData contains data for PlanProduced events.
// Valid is false when the model produced nothing usable.
type PlanProducedData struct {
	RunID      string  `json:"run_id"`
	Step       int     `json:"step"`
	Valid      bool    `json:"valid"`
	ActionType string  `json:"action_type,omitempty"`
	Target     string  `json:"target,omitempty"`
	Confidence float64 `json:"confidence"`
}

// EventType returns the event type for PlanProducedData
func (d *PlanProducedData) EventType() EventType {
	return PlanProduced
}

// ActionExecutedData contains data for ActionExecuted events
type ActionExecutedData struct {
	RunID      string `json:"run_id,omitempty"`
	ActionType string `json:"action_type"`
	Result     string `json:"result"`
	Failed     bool   `json:"failed"`
	Skipped    bool   `json:"skipped"`
}

// EventType returns the event type for ActionExecutedData
func (d *ActionExecutedData) EventType() EventType {
	return ActionExecuted
}

// CycleCompletedData contains data for CycleCompleted events
type CycleCompletedData struct {
	RunID      string  `json:"run_id"`
	Steps      int     `json:"steps"`
	LastAction string  `json:"last_action"`
	Duration   float64 `json:"duration"`
}

// EventType returns the event type for CycleCompletedData
func (d *CycleCompletedData) EventType() EventType {
	return CycleCompleted
}

// TransferSentData contains data for TransferSent events
type TransferSentData struct {
	Destination string  `json:"destination"`
	AmountSOL   float64 `json:"amount_sol"`
	Signature   string  `json:"signature"`
	DryRun      bool    `json:"dry_run"`
}

// EventType returns the event type for TransferSentData
func (d *TransferSentData) EventType() EventType {
	return TransferSent
}

// SwapExecutedData contains data for SwapExecuted events
type SwapExecutedData struct {
	FromToken string  `json:"from_token"`
	ToToken   string  `json:"to_token"`
	Amount    float64 `json:"amount"`
	AmountUSD float64 `json:"amount_usd"`
	Signature string  `json:"signature"`
	Mock      bool    `json:"mock"`
	DryRun    bool    `json:"dry_run"`
}

// EventType returns the event type for SwapExecutedData
func (d *SwapExecutedData) EventType() EventType {
	return SwapExecuted
}

// PolicyDeniedData contains data for PolicyDenied events
type PolicyDeniedData struct {
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

// EventType returns the event type for PolicyDeniedData
func (d *PolicyDeniedData) EventType() EventType {
	return PolicyDenied
}

// DriftDetectedData contains data for DriftDetected events
type DriftDetectedData struct {
	OnchainSOL float64 `json:"onchain_sol"`
	TrackedSOL float64 `json:"tracked_sol"`
	Reconciled bool    `json:"reconciled"`
}

// EventType returns the event type for DriftDetectedData
func (d *DriftDetectedData) EventType() EventType {
	return DriftDetected
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key       string  `json:"key"`
	SizeBytes int64   `json:"size_bytes"`
	Checksum  string  `json:"checksum"`
	Duration  float64 `json:"duration"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// Event is a published event. Data holds the typed payload flattened into a
// map so subscribers can forward it without knowing every type.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Module    string                 `json:"module"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Typed converts the payload back into its concrete EventData.
// Returns nil for unknown types or malformed payloads.
func (e *Event) Typed() EventData {
	if e.Data == nil {
		return nil
	}

	var data EventData
	switch e.Type {
	case CycleStarted:
		data = &CycleStartedData{}
	case ObservationsCollected:
		data = &ObservationsCollectedData{}
	case PlanProduced:
		data = &PlanProducedData{}
	case ActionExecuted:
		data = &ActionExecutedData{}
	case CycleCompleted:
		data = &CycleCompletedData{}
	case TransferSent:
		data = &TransferSentData{}
	case SwapExecuted:
		data = &SwapExecutedData{}
	case PolicyDenied:
		data = &PolicyDeniedData{}
	case DriftDetected:
		data = &DriftDetectedData{}
	case BackupCompleted:
		data = &BackupCompletedData{}
	case ErrorOccurred:
		data = &ErrorEventData{}
	default:
		return nil
	}

	if err := convertMapToStruct(e.Data, data); err != nil {
		return nil
	}
	return data
}

// convertMapToStruct round-trips a map through JSON into v
func convertMapToStruct(m map[string]interface{}, v interface{}) error {
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonBytes, v)
}

// convertEventDataToMap flattens typed EventData for publishing
func convertEventDataToMap(data EventData) map[string]interface{} {
	if data == nil {
		return nil
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil
	}
	return result
}
