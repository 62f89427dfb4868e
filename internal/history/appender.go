// Package history keeps the durable, deduplicated ledgers that outlive any
// single broker session: executed trades and portfolio value samples, one
// JSON record per line in per-account files.
package history

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

// appender serializes writes to one ledger file. All appends go through a
// single goroutine, so concurrent callers can never interleave partial
// lines. Write failures are logged and swallowed: in-memory state stays
// authoritative for the session.
type appender struct {
	path   string
	logger *zap.Logger

	ch   chan []byte
	wg   sync.WaitGroup
	once sync.Once
}

func newAppender(path string, logger *zap.Logger) *appender {
	a := &appender{
		path:   path,
		logger: logger,
		ch:     make(chan []byte, 1024),
	}

	a.wg.Add(1)
	go a.writeLoop()

	return a
}

// enqueue adds one record line to the write chain, preserving call order.
func (a *appender) enqueue(line []byte) {
	a.ch <- line
}

func (a *appender) writeLoop() {
	defer a.wg.Done()

	var f *os.File

	defer func() {
		if f != nil {
			_ = f.Close()
		}
	}()

	for line := range a.ch {
		if f == nil {
			var err error
			f, err = os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				LedgerWriteErrorsTotal.Inc()
				a.logger.Warn("ledger-open-failed",
					zap.String("path", a.path),
					zap.Error(err))
				continue
			}
		}

		_, err := f.Write(append(line, '\n'))
		if err != nil {
			LedgerWriteErrorsTotal.Inc()
			a.logger.Warn("ledger-write-failed",
				zap.String("path", a.path),
				zap.Error(err))
			_ = f.Close()
			f = nil
		}
	}
}

// close drains the write chain and closes the file.
func (a *appender) close() {
	a.once.Do(func() {
		close(a.ch)
	})
	a.wg.Wait()
}
