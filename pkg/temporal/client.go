package temporal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go.temporal.io/api/enums/v1"
	taskqueuepb "go.temporal.io/api/taskqueue/v1"
	workflowservicepb "go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"

	"github.com/stackingdao/points-engine/pkg/utils"
)

type Client struct {
	TClient   client.Client
	TSClient  client.ScheduleClient
	Namespace string

	// Task Queues
	AccrualQueue     string // accrual - daily accrual runs and wallet balance work
	LeaderboardQueue string // leaderboard - full recalculation runs

	// Schedule IDs
	DailyAccrualScheduleID string

	// Workflow IDs
	AccrualWorkflowId     string
	LeaderboardWorkflowId string
}

type Health struct {
	ConnectionOK     bool                      `json:"connection_ok"`
	AccrualQueue     []*taskqueuepb.PollerInfo `json:"accrual_queue"`
	LeaderboardQueue []*taskqueuepb.PollerInfo `json:"leaderboard_queue"`
}

func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("TEMPORAL_HOSTPORT", "localhost:7233")
	ns := utils.Env("TEMPORAL_NAMESPACE", "points")
	loggerWrapper := NewZapAdapter(logger)

	logger.Info("Connecting to Temporal", zap.String("host", host), zap.String("namespace", ns))
	tClient, err := Dial(ctx, host, ns, loggerWrapper)
	if err != nil {
		return nil, err
	}

	if _, err = tClient.CheckHealth(ctx, nil); err != nil {
		return nil, err
	}

	return &Client{
		TClient:   tClient,
		TSClient:  tClient.ScheduleClient(),
		Namespace: ns,
		// for now these are just hardcoded, could be configurable if we need it
		AccrualQueue:     "accrual",
		LeaderboardQueue: "leaderboard",
		// schedule IDs
		DailyAccrualScheduleID: "accrual:daily",
		// workflow IDs
		AccrualWorkflowId:     "accrual:%d",
		LeaderboardWorkflowId: "leaderboard:%s",
	}, nil
}

// Dial connects to Temporal using the provided hostPort and namespace.
func Dial(ctx context.Context, hostPort, namespace string, logger log.Logger) (client.Client, error) {
	return client.DialContext(
		ctx,
		client.Options{
			HostPort:  hostPort,
			Namespace: namespace,
			Logger:    logger,
		},
	)
}

// GetAccrualWorkflowId returns the workflow ID for an accrual run pinned to the
// given block height. Zero height means "at tip": those runs get a timestamped
// ID instead so manual re-triggers don't collide.
func (c *Client) GetAccrualWorkflowId(height uint64) string {
	if height == 0 {
		return fmt.Sprintf(c.AccrualWorkflowId, time.Now().UnixNano())
	}
	return fmt.Sprintf(c.AccrualWorkflowId, height)
}

// GetLeaderboardWorkflowId returns the workflow ID for a recalculation
// triggered by the given finalized block.
func (c *Client) GetLeaderboardWorkflowId(blockHash string) string {
	return fmt.Sprintf(c.LeaderboardWorkflowId, blockHash)
}

// DailySpec returns a schedule spec for once a day.
func (c *Client) DailySpec() client.ScheduleSpec {
	return c.GetScheduleSpec(24 * time.Hour)
}

// GetScheduleSpec returns a schedule spec for the given interval.
func (c *Client) GetScheduleSpec(interval time.Duration) client.ScheduleSpec {
	return client.ScheduleSpec{Intervals: []client.ScheduleIntervalSpec{{Every: interval}}}
}

// Health returns the health of the Temporal client.
func (c *Client) Health(ctx context.Context) (Health, error) {
	h := Health{ConnectionOK: true}
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	svc := c.TClient.WorkflowService()
	if svc != nil {
		if rep, err := svc.DescribeTaskQueue(ctx, &workflowservicepb.DescribeTaskQueueRequest{
			Namespace:     c.Namespace,
			TaskQueue:     &taskqueuepb.TaskQueue{Name: c.AccrualQueue},
			TaskQueueType: enums.TASK_QUEUE_TYPE_WORKFLOW,
		}); err == nil {
			h.AccrualQueue = rep.GetPollers()
		}
		if rep, err := svc.DescribeTaskQueue(ctx, &workflowservicepb.DescribeTaskQueueRequest{
			Namespace:     c.Namespace,
			TaskQueue:     &taskqueuepb.TaskQueue{Name: c.LeaderboardQueue},
			TaskQueueType: enums.TASK_QUEUE_TYPE_WORKFLOW,
		}); err == nil {
			h.LeaderboardQueue = rep.GetPollers()
		}
	}
	return h, nil
}

// Close closes the underlying Temporal connection.
func (c *Client) Close() {
	if c.TClient != nil {
		c.TClient.Close()
	}
}
