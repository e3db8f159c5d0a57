package api

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := make(map[string]ComponentHealth)
	overall := "healthy"

	// Check operational store (BadgerDB)
	dbHealth := s.checkDatabase(ctx)
	components["database"] = dbHealth
	if dbHealth.Status != "healthy" {
		overall = "unhealthy"
	}

	// Check the input root runs read from
	inputHealth := s.checkInputDir()
	components["input"] = inputHealth
	if inputHealth.Status == "unhealthy" {
		overall = "unhealthy"
	} else if inputHealth.Status == "degraded" && overall == "healthy" {
		overall = "degraded"
	}

	// Check taxonomy index
	taxonomyHealth := s.checkTaxonomy()
	components["taxonomy"] = taxonomyHealth
	if taxonomyHealth.Status == "unhealthy" {
		overall = "unhealthy"
	} else if taxonomyHealth.Status == "degraded" && overall == "healthy" {
		overall = "degraded"
	}

	components["runs"] = s.checkRuns()

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

// checkDatabase verifies BadgerDB is accessible.
func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	// Handle nil store (e.g., in tests)
	if s.store == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "database not configured",
		}
	}

	start := time.Now()

	// Quick read to verify the store is accessible. An empty history is fine.
	_, err := s.store.ListRuns(ctx, 1)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "database read failed",
		}
	}

	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
	}
}

// checkInputDir verifies the directory shop exports land in exists. Runs
// started while it is missing fail immediately, so surface it here.
func (s *Server) checkInputDir() ComponentHealth {
	if s.cfg.InputDir == "" {
		return ComponentHealth{
			Status:  "degraded",
			Message: "input directory not configured",
		}
	}

	info, err := os.Stat(s.cfg.InputDir)
	if err != nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "input directory missing",
		}
	}
	if !info.IsDir() {
		return ComponentHealth{
			Status:  "degraded",
			Message: "input path is not a directory",
		}
	}

	return ComponentHealth{Status: "healthy"}
}

// checkTaxonomy verifies the category index resolved a usable tree.
func (s *Server) checkTaxonomy() ComponentHealth {
	if s.index == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "taxonomy index not configured",
		}
	}

	// An empty index still serves requests, but every mapping falls through
	// to Other.
	if s.index.Size() == 0 {
		return ComponentHealth{
			Status:  "degraded",
			Message: "taxonomy index empty",
		}
	}

	return ComponentHealth{Status: "healthy"}
}

// checkRuns reports pipeline activity. In-flight runs are normal operation.
func (s *Server) checkRuns() ComponentHealth {
	active := s.runs.holding()

	return ComponentHealth{
		Status:  "healthy",
		Message: formatRunStatus(len(active)),
	}
}

func formatRunStatus(count int) string {
	switch count {
	case 0:
		return "idle"
	case 1:
		return "1 run in flight"
	default:
		return strconv.Itoa(count) + " runs in flight"
	}
}
