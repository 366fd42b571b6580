package campaign

import (
	"context"
	"encoding/json"
	"fmt"

	"smallbiznis-referral/pkg/task"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type DispatchPayload struct {
	BatchSize  int    `json:"batch_size"`
	CampaignID string `json:"campaign_id,omitempty"`
}

func NewDispatchTask(p DispatchPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(task.CampaignDispatchRun, b, asynq.Queue("dispatch"), asynq.MaxRetry(0)), nil
}

type TaskHandler struct {
	runner *Runner
}

func NewTaskHandler(runner *Runner) *TaskHandler {
	return &TaskHandler{runner: runner}
}

func (h *TaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p DispatchPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode dispatch payload: %v: %w", err, asynq.SkipRetry)
	}

	res, err := h.runner.Dispatch(ctx, DispatchOptions{BatchSize: p.BatchSize, CampaignID: p.CampaignID})
	if err != nil {
		return err
	}

	zap.L().Info("scheduled dispatch done",
		zap.String("batch_id", res.BatchID),
		zap.Int("claimed", res.Claimed),
		zap.Int("failed", res.Failed),
	)
	return nil
}

func registerTaskHandler(mux *asynq.ServeMux, h *TaskHandler) {
	mux.Handle(task.CampaignDispatchRun, h)
}
