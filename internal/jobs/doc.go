// Package jobs tracks in-memory transcode jobs.
//
// Each media id has at most one live job. Jobs move forward only:
// queued → running → done, with error reachable from queued or running.
// Out-of-order events are dropped. Every applied change is pushed to the
// configured Publisher before the triggering call returns.
package jobs
