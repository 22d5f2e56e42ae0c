package models

import "time"

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
	Code      int    `json:"code,omitempty"`
}

type BatchFailure struct {
	Batch int    `json:"batch"`
	Entry string `json:"entry,omitempty"`
	Path  string `json:"path,omitempty"`
	Errno int    `json:"errno"`
	Error string `json:"error"`
}

type RunResult struct {
	ListFile       string         `json:"list_file"`
	Status         string         `json:"status"`
	Entries        int            `json:"entries"`
	Imported       int            `json:"imported"`
	Skipped        int            `json:"skipped"`
	Batches        int            `json:"batches"`
	FailedBatches  int            `json:"failed_batches"`
	FirstError     string         `json:"first_error,omitempty"`
	FirstErrorCode int            `json:"first_error_code,omitempty"`
	PlanError      string         `json:"plan_error,omitempty"`
	Failures       []BatchFailure `json:"failures,omitempty"`
	ListRemoved    bool           `json:"list_removed"`
	OperationTime  string         `json:"operation_time"`
	Duration       string         `json:"duration"`
}

type PlannedBatch struct {
	Batch   int    `json:"batch"`
	Entries int    `json:"entries"`
	First   string `json:"first"`
	Last    string `json:"last"`
}

type PlanResult struct {
	ListFile      string         `json:"list_file"`
	ListSize      int64          `json:"list_size_bytes"`
	ListSizeHuman string         `json:"list_size_human"`
	Destination   string         `json:"destination"`
	BatchSize     int            `json:"batch_size"`
	Batches       []PlannedBatch `json:"batches"`
	TotalBatches  int            `json:"total_batches"`
	TotalEntries  int            `json:"total_entries"`
	PlanError     string         `json:"plan_error,omitempty"`
	PlannedAt     time.Time      `json:"planned_at"`
	DryRun        bool           `json:"dry_run"`
}
