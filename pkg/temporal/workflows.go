package temporal

// Workflow type names as registered on the workers. Schedules and external
// triggers reference workflows by name, never by function value, so the ops
// server does not need to import the workflow package.
const (
	DailyAccrualWorkflowName           = "DailyAccrualWorkflow"
	RecalculateLeaderboardWorkflowName = "RecalculateLeaderboardWorkflow"
)
