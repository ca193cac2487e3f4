// Package health aggregates component liveness into one report.
package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional dependency is failing; search still
	// serves from the remaining sources.
	Degraded Status = "degraded"
	// Unhealthy indicates the store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db       DBPinger
	embedder DependencyChecker
	neural   DependencyChecker
	reranker DependencyChecker
}

// New creates a Service. Any dependency checker can be nil when the
// component is not configured.
func New(db DBPinger, embedder, neural, reranker DependencyChecker) *Service {
	return &Service{db: db, embedder: embedder, neural: neural, reranker: reranker}
}

// Check runs health checks against all configured components. A store
// failure is fatal; a failing external dependency only degrades.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	dbOK := s.db.Ping(ctx) == nil
	if dbOK {
		checks["database"] = CheckOK
	} else {
		checks["database"] = CheckError
	}

	deps := map[string]DependencyChecker{
		"embedding": s.embedder,
		"neural":    s.neural,
		"reranker":  s.reranker,
	}
	for name, dep := range deps {
		if dep == nil {
			continue
		}
		if err := dep.HealthCheck(ctx); err != nil {
			checks[name] = CheckError
		} else {
			checks[name] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if !dbOK {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}
