package scheduler

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler keeps named background jobs: repeating tickers and one-shot
// delays. Registering a name that is already taken cancels the old job.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*job
	logger *zap.Logger
	done   chan struct{}
}

type job struct {
	cancel func()
	ticker bool
}

// New creates a Scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs:   make(map[string]*job),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// AddTicker runs task every interval until the name is removed or the
// scheduler stops. A panic in task is logged and the ticker keeps going.
func (s *Scheduler) AddTicker(name string, interval time.Duration, task func()) {
	ticker := time.NewTicker(interval)
	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			ticker.Stop()
			close(stop)
		})
	}

	go func() {
		for {
			select {
			case <-ticker.C:
				s.runGuarded(name, task)
			case <-stop:
				return
			case <-s.done:
				ticker.Stop()
				return
			}
		}
	}()

	s.register(name, &job{cancel: cancel, ticker: true})
}

// AddDelay runs task once after delay, then forgets the name.
func (s *Scheduler) AddDelay(name string, delay time.Duration, task func()) {
	timer := time.AfterFunc(delay, func() {
		select {
		case <-s.done:
			return
		default:
		}
		s.runGuarded(name, task)

		s.mu.Lock()
		delete(s.jobs, name)
		s.mu.Unlock()
	})

	s.register(name, &job{cancel: func() { timer.Stop() }})
}

// Remove cancels the named job. Unknown names are a no-op.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	if ok {
		delete(s.jobs, name)
	}
	s.mu.Unlock()
	if ok {
		j.cancel()
	}
}

// Stop cancels every job. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return
	default:
	}
	close(s.done)
	jobs := s.jobs
	s.jobs = make(map[string]*job)
	s.mu.Unlock()

	for _, j := range jobs {
		j.cancel()
	}
}

// ListTickers returns the names of the registered repeating jobs, sorted.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name, j := range s.jobs {
		if j.ticker {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) register(name string, j *job) {
	s.mu.Lock()
	old, ok := s.jobs[name]
	s.jobs[name] = j
	s.mu.Unlock()
	if ok {
		old.cancel()
	}
}

func (s *Scheduler) runGuarded(name string, task func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked",
				zap.String("name", name),
				zap.Any("panic", r))
		}
	}()
	task()
}
