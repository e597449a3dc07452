package db

import (
	"fmt"
	"time"

	"github.com/distributedio/titanhfe/conf"
	"github.com/distributedio/titanhfe/metrics"
	"github.com/robfig/cron"
	"go.uber.org/zap"
)

// Scheduler drives active expiration on a fixed interval using
// github.com/robfig/cron's "@every" spec rather than a raw time.Ticker,
// so the interval is configurable the same way every other
// cron-scheduled maintenance task in the stack is.
type Scheduler struct {
	db  *DB
	cr  *cron.Cron
	cfg *conf.Hash
}

// NewScheduler wires a Scheduler against db, not yet started.
func NewScheduler(db *DB) *Scheduler {
	return &Scheduler{db: db, cr: cron.New(), cfg: db.cfg}
}

// Start schedules the active-expire cycle at cfg.ActiveExpireInterval and
// begins running it in the background. Stop shuts it down.
func (s *Scheduler) Start() error {
	interval := s.cfg.ActiveExpireInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	spec := fmt.Sprintf("@every %s", interval)
	err := s.cr.AddFunc(spec, s.runCycle)
	if err != nil {
		return annotate(err, "schedule active expire")
	}
	s.cr.Start()
	return nil
}

func (s *Scheduler) Stop() { s.cr.Stop() }

func (s *Scheduler) runCycle() {
	start := time.Now()
	budget := s.cfg.ActiveExpireQuota
	expired, err := s.db.ActiveExpireCycle(budget)
	metrics.GetMetrics().ActiveExpireCycleSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		zap.L().Error("active expire cycle failed", zap.Error(err))
		return
	}
	if logEnv := zap.L().Check(zap.DebugLevel, "active expire cycle"); logEnv != nil {
		logEnv.Write(zap.Int("expired", expired), zap.Duration("took", time.Since(start)))
	}
}

// ActiveExpireCycle runs a single bounded pass over the process-wide
// Index, visiting hashes in
// ascending-deadline bucket order, expiring up to budget fields total
// across as many hashes as it takes, and re-publishing (or dropping) each
// visited hash's position in the Index before moving to the next.
func (db *DB) ActiveExpireCycle(budget int) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	granted := db.quota.reserve(budget)
	if granted <= 0 {
		return 0, nil
	}

	now := NowMs()
	expired := 0
	db.global.Expire(now, granted, func(it Item) Action {
		h := it.(*Hash)
		key := h.key

		if expired >= granted {
			return StopAction()
		}
		expired += db.expireHashFields(key, h, now, granted-expired)

		if h.isEmpty() {
			db.keyspace.delete(key)
			if err := db.propagateKeyDelete(key); err != nil {
				_ = err
			}
			db.adjustCacheMemory(-1)
			return RemoveAction()
		}
		min, ok := h.MinExpire()
		if !ok {
			db.adjustCacheMemory(-1)
			return RemoveAction()
		}
		return UpdateKeyToAction(min)
	})

	metrics.GetMetrics().ActiveExpireFieldsTotal.Add(float64(expired))
	return expired, nil
}

// expireHashFields removes up to budget expired fields from h's own
// storage (its LISTPACK_EX leading run, or its private HT Index),
// propagating one field-delete record per removal. It never touches h's
// position in the process-wide Index; the caller (ActiveExpireCycle)
// owns that.
func (db *DB) expireHashFields(key []byte, h *Hash, now int64, budget int) int {
	if budget <= 0 {
		return 0
	}
	switch h.Encoding {
	case EncodingListpackEx:
		removed, _ := h.lpx.expire(now, budget)
		for _, e := range removed {
			if err := db.propagateFieldDelete(key, e.field); err != nil {
				_ = err
			}
		}
		return len(removed)
	case EncodingHT:
		count := 0
		h.ht.hfe.Expire(now, budget, func(it Item) Action {
			entry := it.(*httEntry)
			delete(h.ht.fields, string(entry.field.Name))
			if err := db.propagateFieldDelete(key, entry.field.Name); err != nil {
				_ = err
			}
			count++
			return RemoveAction()
		})
		return count
	default:
		return 0
	}
}
