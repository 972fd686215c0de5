package db

import (
	"encoding/json"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *BoltAdapter {
	t.Helper()
	a, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func countKeys(t *testing.T, a *BoltAdapter, bucket []byte, prefix string) int {
	t.Helper()
	n := 0
	err := a.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, _ := c.Seek([]byte(prefix)); k != nil; k, _ = c.Next() {
			if len(k) < len(prefix) || string(k[:len(prefix)]) != prefix {
				break
			}
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestPutInsertTaskEventsDistinctKeys(t *testing.T) {
	a := openTest(t)
	require.NoError(t, a.PutInsertTaskEvents("2018/foo/01", TaskEventRow{Time: time.Now(), Event: "submitted"}))
	require.NoError(t, a.PutInsertTaskEvents("2018/foo/01", TaskEventRow{Time: time.Now().Add(time.Second), Event: "started"}))

	assert.Equal(t, 2, countKeys(t, a, bucketTaskEvents, "2018/foo/01"))
}

func TestPutUpdateTaskJobsMergesFields(t *testing.T) {
	a := openTest(t)
	running := 1
	require.NoError(t, a.PutUpdateTaskJobs("2018/foo", 1, TaskJobDelta{RunStatus: &running, BatchSysJobID: "12345"}))

	succeeded := 0
	require.NoError(t, a.PutUpdateTaskJobs("2018/foo", 1, TaskJobDelta{RunStatus: &succeeded}))

	var rec jobRecord
	err := a.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTaskJobs).Get([]byte("2018/foo/1"))
		require.NotNil(t, data)
		return json.Unmarshal(data, &rec)
	})
	require.NoError(t, err)

	require.NotNil(t, rec.RunStatus)
	assert.Equal(t, 0, *rec.RunStatus, "second update overwrote run_status")
	assert.Equal(t, "12345", rec.BatchSysJobID, "first update's batch id survives the merge")
}

func TestPutUpdateTaskOutputsOverwrites(t *testing.T) {
	a := openTest(t)
	require.NoError(t, a.PutUpdateTaskOutputs("2018/foo", TaskOutputsRow{Completed: []string{"submitted"}}))
	require.NoError(t, a.PutUpdateTaskOutputs("2018/foo", TaskOutputsRow{Completed: []string{"submitted", "started", "succeeded"}}))

	var row TaskOutputsRow
	err := a.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTaskOutputs).Get([]byte("2018/foo"))
		require.NotNil(t, data)
		return json.Unmarshal(data, &row)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"submitted", "started", "succeeded"}, row.Completed)
}
