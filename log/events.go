package log

// Inner log events.
const (
	EventComponentStarted  = "component_started"
	EventComponentShutdown = "component_shutdown"
	EventMSTerminated      = "ms_terminated"
	EventPanic             = "panic"
	EventStoreInit         = "store_init"
	EventCmdDispatched     = "cmd_dispatched"
	EventCmdFailed         = "cmd_failed"
	EventCmdRolledBack     = "cmd_rolled_back"
	EventStateReconciled   = "state_reconciled"
	EventStaleReconcile    = "stale_reconcile_discarded"
	EventTimerArmed        = "timer_armed"
	EventTimerFired        = "timer_fired"
	EventWSConnAdded       = "ws_conn_added"
	EventWSConnRemoved     = "ws_conn_removed"
)
