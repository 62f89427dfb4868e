package history

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/msandoval/tradeterm/pkg/types"
	"go.uber.org/zap"
)

var accountKeyRe = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// accountKey sanitizes an account identifier into a storage key so
// multiple accounts never collide in the same backing file.
func accountKey(account string) string {
	key := accountKeyRe.ReplaceAllString(account, "_")
	if key == "" {
		key = "default"
	}
	return key
}

// Store is the per-account trade ledger: append-only on disk, deduplicated
// by execution id in memory, deterministically ordered on read.
type Store struct {
	logger *zap.Logger
	app    *appender

	mu   sync.RWMutex
	byID map[string]types.TradeRecord
}

// OpenStore opens (and loads) the trade ledger for one account. A missing
// ledger file is an empty ledger; unreadable lines are skipped.
func OpenStore(dir, account string, logger *zap.Logger) (*Store, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(dir, accountKey(account)+".trades.jsonl")

	s := &Store{
		logger: logger,
		byID:   make(map[string]types.TradeRecord),
	}

	err = s.load(path)
	if err != nil {
		return nil, err
	}

	s.app = newAppender(path, logger)

	logger.Info("trade-ledger-loaded",
		zap.String("path", path),
		zap.Int("records", len(s.byID)))

	return s, nil
}

// load reads every persisted record, dropping any without a stable id.
// Last write for a given id wins, which also heals duplicates left by
// earlier crashes.
func (s *Store) load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec types.TradeRecord
		err := json.Unmarshal(line, &rec)
		if err != nil {
			// Torn trailing line from a crashed append.
			s.logger.Warn("ledger-line-skipped", zap.Error(err))
			continue
		}

		if rec.ID == "" {
			continue
		}

		s.byID[rec.ID] = rec
	}

	err = scanner.Err()
	if err != nil {
		s.logger.Warn("ledger-read-truncated", zap.Error(err))
	}

	return nil
}

// Append merges one trade record into the ledger. Records without an id are
// dropped. Re-appending an identical record is a no-op; a changed record
// under a known id replaces it (last write wins) without growing the
// ledger. Returns whether anything changed.
func (s *Store) Append(rec types.TradeRecord) bool {
	if rec.ID == "" {
		return false
	}

	s.mu.Lock()
	existing, known := s.byID[rec.ID]
	if known && existing == rec {
		s.mu.Unlock()
		TradesDedupedTotal.Inc()
		return false
	}

	s.byID[rec.ID] = rec
	s.mu.Unlock()

	line, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("trade-marshal-failed", zap.String("id", rec.ID), zap.Error(err))
		return true
	}

	s.app.enqueue(line)
	TradesAppendedTotal.Inc()

	return true
}

// Merge appends a batch of records; idempotent over overlapping batches.
func (s *Store) Merge(recs []types.TradeRecord) int {
	changed := 0
	for _, rec := range recs {
		if s.Append(rec) {
			changed++
		}
	}
	return changed
}

// Trades returns the ledger sorted by (time, id) ascending.
func (s *Store) Trades() []types.TradeRecord {
	s.mu.RLock()
	out := make([]types.TradeRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})

	return out
}

// Len returns the number of deduplicated records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Close drains pending writes.
func (s *Store) Close() error {
	s.app.close()
	return nil
}
