package models

import (
	"fmt"
	"time"
)

// Stage is a state of the analysis pipeline.
type Stage string

const (
	StageReceived        Stage = "received"
	StageSignalsPending  Stage = "signals_pending"
	StageSignalsComplete Stage = "signals_complete"
	StageAnomalyChecked  Stage = "anomaly_checked"
	StageSynthesized     Stage = "synthesized"
	StageAdvised         Stage = "advised"
	StageDone            Stage = "done"
	StageFailed          Stage = "failed"
)

func (s Stage) Terminal() bool { return s == StageDone || s == StageFailed }

// StageSpan records when the pipeline entered and left a stage.
type StageSpan struct {
	Stage     Stage     `json:"stage"`
	EnteredAt time.Time `json:"entered_at"`
	ExitedAt  time.Time `json:"exited_at,omitempty"`
}

type AnalysisResult struct {
	RequestID      string             `json:"request_id"`
	SecurityID     string             `json:"security_id"`
	AsOf           time.Time          `json:"as_of"`
	Recommendation Recommendation     `json:"recommendation"`
	Advice         PortfolioFitAdvice `json:"advice"`
	Anomalies      []AnomalyFlag      `json:"anomalies"`
	Signals        *SignalSet         `json:"signals"`
	AgentErrors    map[string]string  `json:"agent_errors,omitempty"`
	Trace          []StageSpan        `json:"trace"`
	CompletedAt    time.Time          `json:"completed_at"`
}

// AnalysisError is the terminal error of a failed analysis. It keeps the partial
// state for diagnosis and unwraps to the taxonomy error.
type AnalysisError struct {
	RequestID   string            `json:"request_id"`
	SecurityID  string            `json:"security_id"`
	AsOf        time.Time         `json:"as_of"`
	Stage       Stage             `json:"stage"` // last stage reached before Failed
	Signals     *SignalSet        `json:"signals"`
	AgentErrors map[string]string `json:"agent_errors,omitempty"`
	Trace       []StageSpan       `json:"trace"`
	Err         error             `json:"-"`
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis %s failed at %s: %v", e.RequestID, e.Stage, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }
