// Package db is the thin adapter the task-event core uses to record events
// and job-state deltas (spec §4.9/C9). It is bucket-per-entity,
// JSON-per-row bbolt storage, adapted from the teacher's
// pkg/storage/boltdb.go style.
package db

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketTaskEvents  = []byte("task_events")
	bucketTaskJobs    = []byte("task_jobs")
	bucketTaskOutputs = []byte("task_outputs")
)

// TaskEventRow is one row inserted by PutInsertTaskEvents.
type TaskEventRow struct {
	Time    time.Time
	Event   string
	Message string
}

// TaskJobDelta carries the subset of job-row fields a transition updates.
// Zero-value fields are left untouched by Store implementations that
// support partial updates; the bbolt-backed Store here merges non-zero
// fields into the existing row.
type TaskJobDelta struct {
	RunStatus      *int
	TimeRunStart   *time.Time
	TimeRunExit    *time.Time
	TimeSubmitExit *time.Time
	SubmitStatus   *int
	BatchSysJobID  string
	RunSignal      string
}

// TaskOutputsRow snapshots a task's completed output names.
type TaskOutputsRow struct {
	Completed []string
}

// Adapter is the C9 contract: three call shapes, no more.
type Adapter interface {
	PutInsertTaskEvents(taskID string, row TaskEventRow) error
	PutUpdateTaskJobs(taskID string, submitNum int, delta TaskJobDelta) error
	PutUpdateTaskOutputs(taskID string, row TaskOutputsRow) error
	Close() error
}

// jobRecord is the persisted shape for one (task, submit) job row.
type jobRecord struct {
	RunStatus      *int       `json:"run_status,omitempty"`
	TimeRunStart   *time.Time `json:"time_run_start,omitempty"`
	TimeRunExit    *time.Time `json:"time_run_exit,omitempty"`
	TimeSubmitExit *time.Time `json:"time_submit_exit,omitempty"`
	SubmitStatus   *int       `json:"submit_status,omitempty"`
	BatchSysJobID  string     `json:"batch_sys_job_id,omitempty"`
	RunSignal      string     `json:"run_signal,omitempty"`
}

// BoltAdapter is the bbolt-backed Adapter implementation.
type BoltAdapter struct {
	db *bolt.DB
}

// Open creates (or opens) the bbolt-backed adapter under dataDir.
func Open(dataDir string) (*BoltAdapter, error) {
	path := filepath.Join(dataDir, "cyclecore.db")
	bdb, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketTaskEvents, bucketTaskJobs, bucketTaskOutputs} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}

	return &BoltAdapter{db: bdb}, nil
}

// Close closes the underlying database.
func (a *BoltAdapter) Close() error { return a.db.Close() }

// PutInsertTaskEvents appends one (time, event, message) event row.
func (a *BoltAdapter) PutInsertTaskEvents(taskID string, row TaskEventRow) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTaskEvents)
		key := fmt.Sprintf("%s/%s", taskID, row.Time.Format(time.RFC3339Nano))
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// PutUpdateTaskJobs merges delta's non-nil/non-empty fields into the job
// row for (taskID, submitNum).
func (a *BoltAdapter) PutUpdateTaskJobs(taskID string, submitNum int, delta TaskJobDelta) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTaskJobs)
		key := []byte(fmt.Sprintf("%s/%d", taskID, submitNum))

		var rec jobRecord
		if existing := b.Get(key); existing != nil {
			if err := json.Unmarshal(existing, &rec); err != nil {
				return err
			}
		}

		if delta.RunStatus != nil {
			rec.RunStatus = delta.RunStatus
		}
		if delta.TimeRunStart != nil {
			rec.TimeRunStart = delta.TimeRunStart
		}
		if delta.TimeRunExit != nil {
			rec.TimeRunExit = delta.TimeRunExit
		}
		if delta.TimeSubmitExit != nil {
			rec.TimeSubmitExit = delta.TimeSubmitExit
		}
		if delta.SubmitStatus != nil {
			rec.SubmitStatus = delta.SubmitStatus
		}
		if delta.BatchSysJobID != "" {
			rec.BatchSysJobID = delta.BatchSysJobID
		}
		if delta.RunSignal != "" {
			rec.RunSignal = delta.RunSignal
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// PutUpdateTaskOutputs overwrites the completed-outputs snapshot for a task.
func (a *BoltAdapter) PutUpdateTaskOutputs(taskID string, row TaskOutputsRow) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTaskOutputs)
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return b.Put([]byte(taskID), data)
	})
}
