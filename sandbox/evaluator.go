package sandbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/config"
)

// Evaluator runs cleaned script source against resolved artifacts.
type Evaluator interface {
	Evaluate(ctx context.Context, src string, artifacts []string, timeout time.Duration) (*Outcome, error)
}

// InitError reports that the evaluation environment could not be prepared.
type InitError struct {
	// Artifact is empty when a base import failed.
	Artifact string
	Err      error
}

func (e *InitError) Error() string {
	if e.Artifact == "" {
		return fmt.Sprintf("failed to initialize interpreter: %v", e.Err)
	}
	return fmt.Sprintf("failed to load artifact %s: %v", e.Artifact, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// NewEvaluator creates the evaluator selected by sandbox.backend.
func NewEvaluator(logger *zap.Logger, cfg *config.Config) (Evaluator, error) {
	switch cfg.Sandbox.Backend {
	case "yaegi":
		return NewYaegiEvaluator(logger.Named("sandbox"),
			WithBaseImports(cfg.Sandbox.BaseImports),
			WithAllowedPackages(cfg.Sandbox.AllowedPackages),
		), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}
}
