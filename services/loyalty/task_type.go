package loyalty

import (
	"encoding/json"

	"studentslife/pkg/taskname"

	"github.com/hibiken/asynq"
)

type AddStampPayload struct {
	ClientID  string `json:"client_id"`
	PartnerID string `json:"partner_id"`
	CodeID    string `json:"code_id"`
	TraceID   string `json:"trace_id,omitempty"`
}

func NewAddStampTask(payload AddStampPayload) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.LoyaltyStampAdd, b), nil
}
