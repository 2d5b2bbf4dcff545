package llm

import (
	"context"

	"github.com/playbookhq/engine/internal/models"
)

// Fake is a deterministic Client for tests that exercise Reflector or
// Selector without a real provider. Each field holds the canned response
// (or error) for its method; ReflectSequence, when non-empty, is popped
// in order instead, for tests that need a different result per call.
type Fake struct {
	TagInference *models.TagInference
	InferErr     error

	ReflectResult   *models.ReflectionResult
	ReflectErr      error
	ReflectSequence []FakeReflectStep
	ReflectCalls    int
	LastPlaybook    *models.Playbook

	MigrationResult *models.MigrationResult
	MigrateErr      error

	AvailableResult bool
}

// FakeReflectStep is one scripted Reflect call for Fake.ReflectSequence.
type FakeReflectStep struct {
	Result *models.ReflectionResult
	Err    error
}

// NewFake returns a Fake that reports itself available, ready for a test
// to set whichever response fields it needs.
func NewFake() *Fake {
	return &Fake{AvailableResult: true}
}

func (f *Fake) InferTags(ctx context.Context, prompt string, recentHistory []models.TranscriptTurn, maxTags int) (*models.TagInference, error) {
	if f.InferErr != nil {
		return nil, f.InferErr
	}
	return f.TagInference, nil
}

func (f *Fake) Reflect(ctx context.Context, transcript []models.TranscriptTurn, pb *models.Playbook) (*models.ReflectionResult, error) {
	f.LastPlaybook = pb
	i := f.ReflectCalls
	f.ReflectCalls++
	if i < len(f.ReflectSequence) {
		step := f.ReflectSequence[i]
		return step.Result, step.Err
	}
	if f.ReflectErr != nil {
		return nil, f.ReflectErr
	}
	if f.ReflectResult != nil {
		return f.ReflectResult, nil
	}
	return &models.ReflectionResult{}, nil
}

func (f *Fake) MigrateToWhenDo(ctx context.Context, text string) (*models.MigrationResult, error) {
	if f.MigrateErr != nil {
		return nil, f.MigrateErr
	}
	return f.MigrationResult, nil
}

func (f *Fake) Available() bool { return f.AvailableResult }
