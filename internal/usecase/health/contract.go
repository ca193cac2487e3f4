package health

import "context"

// DBPinger checks store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// DependencyChecker checks an external HTTP dependency (embedding provider,
// neural scorer, reranker).
type DependencyChecker interface {
	HealthCheck(ctx context.Context) error
}
