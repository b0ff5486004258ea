package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/stackingdao/points-engine/pkg/points/types"
)

// EnsureDailyAccrualSchedule creates the daily accrual schedule if it doesn't
// exist yet. Safe to call on every startup.
func (c *Client) EnsureDailyAccrualSchedule(ctx context.Context, logger *zap.Logger) error {
	id := c.DailyAccrualScheduleID
	h := c.TSClient.GetHandle(ctx, id)
	_, err := h.Describe(ctx)
	if err == nil {
		logger.Info("Daily accrual schedule already exists",
			zap.String("id", id),
			zap.String("namespace", c.Namespace))
		return nil
	}

	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		logger.Info("Creating daily accrual schedule",
			zap.String("id", id),
			zap.String("namespace", c.Namespace))
		_, scheduleErr := c.TSClient.Create(
			ctx, client.ScheduleOptions{
				ID:   id,
				Spec: c.DailySpec(),
				Action: &client.ScheduleWorkflowAction{
					Workflow:                 DailyAccrualWorkflowName,
					Args:                     []interface{}{types.AccrualInput{}},
					TaskQueue:                c.AccrualQueue,
					WorkflowExecutionTimeout: 4 * time.Hour,
					WorkflowTaskTimeout:      2 * time.Minute,
				},
				// A second run while one is in flight would double-read the
				// same day; skip instead.
				Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
			},
		)
		if scheduleErr != nil {
			return fmt.Errorf("create daily accrual schedule: %w", scheduleErr)
		}
		return nil
	}

	return fmt.Errorf("describe daily accrual schedule: %w", err)
}

// IsWorkflowAlreadyStarted reports whether err means a workflow with the same
// ID is already running. Callers treat that as successful dedup, not failure.
func IsWorkflowAlreadyStarted(err error) bool {
	var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
	return errors.As(err, &alreadyStarted)
}

// StartAccrualWorkflow triggers one accrual run, optionally pinned to a height.
func (c *Client) StartAccrualWorkflow(ctx context.Context, input types.AccrualInput) (client.WorkflowRun, error) {
	return c.TClient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        c.GetAccrualWorkflowId(input.Height),
		TaskQueue: c.AccrualQueue,
	}, DailyAccrualWorkflowName, input)
}

// StartLeaderboardWorkflow triggers one full recalculation. The workflow ID is
// derived from the finalized block hash, so replaying the same stream entry
// dedupes instead of recomputing.
func (c *Client) StartLeaderboardWorkflow(ctx context.Context, input types.RecalcInput) (client.WorkflowRun, error) {
	return c.TClient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       c.GetLeaderboardWorkflowId(input.BlockHash),
		TaskQueue:                c.LeaderboardQueue,
		WorkflowExecutionTimeout: time.Hour,
	}, RecalculateLeaderboardWorkflowName, input)
}
