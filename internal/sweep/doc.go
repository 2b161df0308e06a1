// Package sweep contains the reminder delivery engine's two periodic loops:
// the due-reminder sweeper that drains the dispatch queue and the
// overdue-task sweeper that scans the durable store, plus the supervisor
// that owns their lifecycle.
package sweep
