package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nanakusa/questward/game/penalty"
	"github.com/nanakusa/questward/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	queueDepth = 1024
	batchMax   = 100
	flushEvery = 2 * time.Second
)

// Entry is one audit event to record.
type Entry struct {
	TraceID    string
	AccountID  *int64
	Action     string
	Detail     interface{}
	Error      string
	DurationMs int
}

// Service writes audit entries asynchronously. Entries are batched and
// flushed on a timer; a full queue drops entries rather than blocking
// the request path.
type Service struct {
	db       *gorm.DB
	queue    chan *model.AuditLog
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New starts the Service's background writer.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		queue:  make(chan *model.AuditLog, queueDepth),
		done:   make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.writer()
	return svc
}

// Log enqueues an entry. Never blocks.
func (svc *Service) Log(e Entry) {
	detail, _ := json.Marshal(e.Detail)
	rec := &model.AuditLog{
		TraceID:    e.TraceID,
		AccountID:  e.AccountID,
		Action:     e.Action,
		Detail:     datatypes.JSON(detail),
		Error:      e.Error,
		DurationMs: e.DurationMs,
	}
	select {
	case svc.queue <- rec:
	default:
		svc.logger.Warn("audit queue full, entry dropped", zap.String("action", e.Action))
	}
}

// LogRun records one penalty engine run. Satisfies penalty.Auditor.
func (svc *Service) LogRun(res *penalty.RunResult, errMsg string, duration time.Duration) {
	svc.Log(Entry{
		Action:     "penalty_run",
		Detail:     res,
		Error:      errMsg,
		DurationMs: int(duration.Milliseconds()),
	})
}

// Stop drains the queue and waits for the writer to finish. Safe to call
// more than once, including concurrently.
func (svc *Service) Stop(_ context.Context) {
	svc.stopOnce.Do(func() { close(svc.done) })
	svc.wg.Wait()
}

func (svc *Service) writer() {
	defer svc.wg.Done()
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	pending := make([]*model.AuditLog, 0, batchMax)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := svc.db.Create(&pending).Error; err != nil {
			svc.logger.Error("audit batch write failed",
				zap.Int("entries", len(pending)), zap.Error(err))
		}
		pending = pending[:0]
	}

	for {
		select {
		case rec := <-svc.queue:
			pending = append(pending, rec)
			if len(pending) >= batchMax {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.done:
			for {
				select {
				case rec := <-svc.queue:
					pending = append(pending, rec)
				default:
					flush()
					return
				}
			}
		}
	}
}
