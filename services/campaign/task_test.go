package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"smallbiznis-referral/pkg/config"
	"smallbiznis-referral/pkg/task"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, t *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, t)
	return &asynq.TaskInfo{ID: "task-1", Type: t.Type()}, nil
}

func TestSchedulerTickEnqueuesDispatch(t *testing.T) {
	cfg := &config.Config{}
	cfg.Dispatch.BatchSize = 40
	enq := &fakeEnqueuer{}

	s := NewScheduler(cfg, enq)
	require.Equal(t, time.Minute, s.interval)

	s.tick(context.Background())
	require.Len(t, enq.tasks, 1)
	require.Equal(t, task.CampaignDispatchRun, enq.tasks[0].Type())

	var p DispatchPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &p))
	require.Equal(t, 40, p.BatchSize)

	enq.err = errors.New("duplicate")
	s.tick(context.Background())
	require.Len(t, enq.tasks, 1)
}

func TestProcessTask(t *testing.T) {
	sender := &countingSender{calls: map[string]int{}}
	r, db, _ := newTestRunner(t, sender, nil)
	seedCampaign(t, db, "c1", "biz-1", 3)

	h := NewTaskHandler(r)

	err := h.ProcessTask(context.Background(), asynq.NewTask(task.CampaignDispatchRun, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	tk, err := NewDispatchTask(DispatchPayload{BatchSize: 2})
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), tk))
	require.Len(t, sender.calls, 2)
}
