package handlers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileActivityLoggerWritesUnderJobDir(t *testing.T) {
	dir := t.TempDir()
	jobDir := filepath.Join(dir, "20180101T00", "foo", "01")
	require.NoError(t, os.MkdirAll(jobDir, 0755))

	logger := &FileActivityLogger{JobLogDir: dir, SuiteLog: filepath.Join(dir, "suite.log")}
	logger.Log("20180101T00", "foo", 1, "mail ret_code=0")

	data, err := os.ReadFile(filepath.Join(jobDir, "job-activity.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "mail ret_code=0")
}

func TestFileActivityLoggerFallsBackWhenJobDirMissing(t *testing.T) {
	dir := t.TempDir()
	logger := &FileActivityLogger{JobLogDir: filepath.Join(dir, "nonexistent"), SuiteLog: filepath.Join(dir, "suite.log")}
	logger.Log("20180101T00", "foo", 1, "custom handler ret_code=1 err=boom")

	data, err := os.ReadFile(filepath.Join(dir, "suite.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "20180101T00/foo/01")
	assert.Contains(t, string(data), "boom")
}
