package middleware

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/shrek82/simplejorm/core"
)

// SlowLogMiddleware logs store operations that take longer than Threshold.
type SlowLogMiddleware struct {
	Threshold time.Duration
	LogPath   string
	logger    *log.Logger
	file      *os.File
}

// NewSlowLog creates a SlowLogMiddleware. An empty logPath logs to
// standard output.
func NewSlowLog(threshold time.Duration, logPath string) *SlowLogMiddleware {
	return &SlowLogMiddleware{
		Threshold: threshold,
		LogPath:   logPath,
	}
}

// SetOutput redirects the slow log to w.
func (m *SlowLogMiddleware) SetOutput(w io.Writer) {
	m.logger = log.New(w, "[SLOW SQL] ", log.LstdFlags)
}

func (m *SlowLogMiddleware) Name() string {
	return "SlowLog"
}

func (m *SlowLogMiddleware) Init(db *core.DB) error {
	if m.logger != nil {
		return nil
	}

	if m.LogPath != "" {
		f, err := os.OpenFile(m.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open slow log file: %w", err)
		}
		m.file = f
		m.logger = log.New(f, "[SLOW SQL] ", log.LstdFlags)
	} else {
		m.logger = log.New(os.Stdout, "[SLOW SQL] ", log.LstdFlags)
	}
	return nil
}

func (m *SlowLogMiddleware) Shutdown() error {
	if m.file != nil {
		return m.file.Close()
	}
	return nil
}

func (m *SlowLogMiddleware) Process(ctx context.Context, op *core.Operation, next core.QueryFunc) (*core.Result, error) {
	start := time.Now()
	res, err := next(ctx, op)
	duration := time.Since(start)

	if duration > m.Threshold && m.logger != nil {
		rows := int64(0)
		if res != nil {
			rows = int64(len(res.Records))
			if op.Kind == core.OpCount {
				rows = res.Count
			}
		}
		m.logger.Printf("query_id=%s | entity=%s | relation=%s | duration=%v | sql=%s | args=%v | rows=%d | err=%v",
			op.QueryID, op.Entity, op.Relation, duration, op.Stmt.SQL, op.Stmt.Args, rows, err)
	}

	return res, err
}
