package healthcheck

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	defaultTimeout = 5 * time.Second
)

// Checker probes one dependency. Check returns the message reported when the
// dependency is healthy.
type Checker interface {
	Name() string
	Check(ctx context.Context) (string, error)
}

type ServiceStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Report struct {
	Status   string                   `json:"status"`
	Services map[string]ServiceStatus `json:"services"`
}

func (r Report) Healthy() bool { return r.Status == StatusHealthy }

type Service struct {
	checkers []Checker
	timeout  time.Duration
	logger   *slog.Logger
}

func New(logger *slog.Logger, checkers ...Checker) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{checkers: checkers, timeout: defaultTimeout, logger: logger}
}

// Run executes every checker concurrently, each bounded by its own timeout.
func (s *Service) Run(ctx context.Context) Report {
	report := Report{Status: StatusHealthy, Services: make(map[string]ServiceStatus, len(s.checkers))}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range s.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			msg, err := c.Check(cctx)
			st := ServiceStatus{Status: StatusHealthy, Message: msg}
			if err != nil {
				st = ServiceStatus{Status: StatusUnhealthy, Message: err.Error()}
				s.logger.Error("health check failed", "service", c.Name(), "err", err)
			}

			mu.Lock()
			defer mu.Unlock()
			report.Services[c.Name()] = st
			if err != nil {
				report.Status = StatusUnhealthy
			}
		}(c)
	}
	wg.Wait()
	return report
}

// Func adapts a function to a Checker.
type Func struct {
	name string
	fn   func(ctx context.Context) (string, error)
}

func (f Func) Name() string                              { return f.name }
func (f Func) Check(ctx context.Context) (string, error) { return f.fn(ctx) }

func NewFunc(name string, fn func(ctx context.Context) (string, error)) Func {
	return Func{name: name, fn: fn}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Postgres checks the database connection.
func Postgres(db pinger) Checker {
	return NewFunc("postgresql", func(ctx context.Context) (string, error) {
		if err := db.Ping(ctx); err != nil {
			return "", wrap("Database connection failed", err)
		}
		return "Database connection successful", nil
	})
}

type vectorStore interface {
	VectorStoreReady(ctx context.Context) (bool, error)
}

// VectorStore checks that pgvector is installed and the chunk table exists.
func VectorStore(store vectorStore) Checker {
	return NewFunc("vector_store", func(ctx context.Context) (string, error) {
		ok, err := store.VectorStoreReady(ctx)
		if err != nil {
			return "", wrap("Vector store connection failed", err)
		}
		if !ok {
			return "", errors.New("Vector store connection failed: pgvector extension or doc_chunks table missing")
		}
		return "Vector store connection successful", nil
	})
}

type readiness interface {
	Ready() error
}

// Agent checks that the agent and its model client were initialised.
func Agent(a readiness) Checker {
	return NewFunc("aws_bedrock", func(context.Context) (string, error) {
		if err := a.Ready(); err != nil {
			return "", wrap("AWS Bedrock connection failed", err)
		}
		return "AWS Bedrock client initialized", nil
	})
}

func wrap(prefix string, err error) error {
	return errors.New(prefix + ": " + err.Error())
}
