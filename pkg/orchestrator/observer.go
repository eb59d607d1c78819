package orchestrator

import (
	"time"

	"github.com/goliatone/go-docfill/pkg/document"
)

// Stage names a pipeline step.
type Stage string

const (
	StageResolve Stage = "resolve"
	StageBind    Stage = "bind"
	StageRender  Stage = "render"
	StageConvert Stage = "convert"
	// StageDone marks a generation that completed every stage.
	StageDone Stage = "done"
)

// Outcome summarises one Generate call. Stage is the failing stage, or
// StageDone on success.
type Outcome struct {
	TemplateID string
	Format     document.Format
	Stage      Stage
	Duration   time.Duration
	Err        error
}

// Observer receives pipeline measurements. Implementations must be safe for
// concurrent use.
type Observer interface {
	StageFinished(stage Stage, elapsed time.Duration, err error)
	GenerationFinished(outcome Outcome)
}

type nopObserver struct{}

func (nopObserver) StageFinished(Stage, time.Duration, error) {}
func (nopObserver) GenerationFinished(Outcome)                {}
