package healthcheck

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeVectors struct {
	ok  bool
	err error
}

func (f fakeVectors) VectorStoreReady(context.Context) (bool, error) { return f.ok, f.err }

type fakeAgent struct{ err error }

func (f fakeAgent) Ready() error { return f.err }

func TestRun_AllHealthy(t *testing.T) {
	svc := New(nil, Postgres(fakePinger{}), VectorStore(fakeVectors{ok: true}), Agent(fakeAgent{}))

	report := svc.Run(context.Background())
	require.True(t, report.Healthy())
	require.Equal(t, map[string]ServiceStatus{
		"postgresql":   {Status: StatusHealthy, Message: "Database connection successful"},
		"vector_store": {Status: StatusHealthy, Message: "Vector store connection successful"},
		"aws_bedrock":  {Status: StatusHealthy, Message: "AWS Bedrock client initialized"},
	}, report.Services)
}

func TestRun_OneUnhealthy(t *testing.T) {
	cases := []struct {
		name    string
		checker Checker
		service string
		message string
	}{
		{"database down", Postgres(fakePinger{err: errors.New("connection refused")}), "postgresql", "Database connection failed: connection refused"},
		{"extension missing", VectorStore(fakeVectors{ok: false}), "vector_store", "Vector store connection failed: pgvector extension or doc_chunks table missing"},
		{"vector query error", VectorStore(fakeVectors{err: errors.New("timeout")}), "vector_store", "Vector store connection failed: timeout"},
		{"agent not ready", Agent(fakeAgent{err: errors.New("agent: not ready")}), "aws_bedrock", "AWS Bedrock connection failed: agent: not ready"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			healthy := NewFunc("other", func(context.Context) (string, error) { return "fine", nil })
			report := New(nil, healthy, tc.checker).Run(context.Background())

			require.False(t, report.Healthy())
			require.Equal(t, StatusUnhealthy, report.Status)
			require.Equal(t, StatusHealthy, report.Services["other"].Status)
			require.Equal(t, ServiceStatus{Status: StatusUnhealthy, Message: tc.message}, report.Services[tc.service])
		})
	}
}

func TestRun_NoCheckers(t *testing.T) {
	report := New(nil).Run(context.Background())
	require.True(t, report.Healthy())
	require.Empty(t, report.Services)
}
