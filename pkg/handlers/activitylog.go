package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileActivityLogger appends process-context lines to the per-(task,
// submit) activity log (spec §6). If the job directory does not exist it
// falls back to a single suite-wide log file (spec §7: "Absent job
// directory ... fall back to the suite log; never fatal").
type FileActivityLogger struct {
	JobLogDir string // <jobLogDir>/<point>/<name>/<NN>/job-activity.log
	SuiteLog  string // fallback path

	mu sync.Mutex
}

// Log appends one line, falling back to the suite log on any failure to
// open the per-task activity log.
func (f *FileActivityLogger) Log(point, name string, submitNum int, line string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := filepath.Join(f.JobLogDir, point, name, fmt.Sprintf("%02d", submitNum), "job-activity.log")
	if f.appendLine(path, line) == nil {
		return
	}
	_ = f.appendLine(f.SuiteLog, fmt.Sprintf("[%s/%s/%02d] %s", point, name, submitNum, line))
}

func (f *FileActivityLogger) appendLine(path, line string) error {
	if path == "" {
		return fmt.Errorf("no path configured")
	}
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer fh.Close()
	_, err = fh.WriteString(line + "\n")
	return err
}
