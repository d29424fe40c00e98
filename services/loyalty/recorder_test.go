package loyalty

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"studentslife/pkg/config"
	"studentslife/pkg/task/mock"
	"studentslife/pkg/taskname"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestQueuedRecorderEnqueuesStampTask(t *testing.T) {
	ctrl := gomock.NewController(t)
	enq := mock.NewMockEnqueuer(ctrl)

	enq.EXPECT().
		Enqueue(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
			require.Equal(t, taskname.LoyaltyStampAdd, task.Type())

			var payload AddStampPayload
			require.NoError(t, json.Unmarshal(task.Payload(), &payload))
			require.Equal(t, "c1", payload.ClientID)
			require.Equal(t, "p1", payload.PartnerID)
			require.Equal(t, "code-1", payload.CodeID)
			return &asynq.TaskInfo{ID: "stamp:code-1", Queue: "loyalty"}, nil
		})

	out, err := NewQueuedRecorder(enq, "").RecordStamp(context.Background(), StampRequest{ClientID: "c1", PartnerID: "p1", CodeID: "code-1"})
	require.NoError(t, err)
	require.True(t, out.Queued)
}

func TestQueuedRecorderTreatsDuplicateAsQueued(t *testing.T) {
	ctrl := gomock.NewController(t)
	enq := mock.NewMockEnqueuer(ctrl)

	enq.EXPECT().
		Enqueue(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, asynq.ErrTaskIDConflict)

	out, err := NewQueuedRecorder(enq, "loyalty").RecordStamp(context.Background(), StampRequest{ClientID: "c1", PartnerID: "p1", CodeID: "code-1"})
	require.NoError(t, err)
	require.True(t, out.Queued)
}

func TestQueuedRecorderReportsEnqueueFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	enq := mock.NewMockEnqueuer(ctrl)

	enq.EXPECT().
		Enqueue(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("redis down"))

	_, err := NewQueuedRecorder(enq, "loyalty").RecordStamp(context.Background(), StampRequest{ClientID: "c1", PartnerID: "p1", CodeID: "code-1"})
	require.Error(t, err)
}

func TestNewRecorderPicksMode(t *testing.T) {
	svc := newTestService(t)
	ctrl := gomock.NewController(t)
	enq := mock.NewMockEnqueuer(ctrl)

	cfg := &config.Config{}
	require.IsType(t, &DirectRecorder{}, NewRecorder(RecorderParams{Config: cfg, Service: svc, Enqueuer: enq}))

	cfg.Loyalty.Async = true
	require.IsType(t, &QueuedRecorder{}, NewRecorder(RecorderParams{Config: cfg, Service: svc, Enqueuer: enq}))
	require.IsType(t, &DirectRecorder{}, NewRecorder(RecorderParams{Config: cfg, Service: svc}))
}

func TestDirectRecorderAddsStamp(t *testing.T) {
	svc := newTestService(t)
	seedCard(t, svc, "p1", 10)

	out, err := NewDirectRecorder(svc).RecordStamp(context.Background(), StampRequest{ClientID: "c1", PartnerID: "p1", CodeID: "code-1"})
	require.NoError(t, err)
	require.Equal(t, int32(1), out.Count)
}
