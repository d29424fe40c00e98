package redemption

import (
	"context"

	"studentslife/services/loyalty"
)

//go:generate mockgen -source=recorder.go -destination=mock/recorder_mock.go -package=mock

// StampRecorder is the loyalty side effect of a successful redemption.
// Errors are logged and counted by the caller and never change the result.
type StampRecorder interface {
	RecordStamp(ctx context.Context, req loyalty.StampRequest) (*loyalty.StampOutcome, error)
}

func NewStampRecorder(r loyalty.Recorder) StampRecorder {
	return r
}
