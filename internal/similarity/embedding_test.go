package similarity

import "testing"

func TestEmbedding_Available(t *testing.T) {
	e := NewEmbedding(EmbeddingConfig{})
	if e.Available() {
		t.Error("expected Available() to be false with no lib/model path configured")
	}
}

func TestEmbedding_Available_MissingPaths(t *testing.T) {
	e := NewEmbedding(EmbeddingConfig{LibPath: "/nonexistent/lib", ModelPath: "/nonexistent/model.gguf"})
	if e.Available() {
		t.Error("expected Available() to be false when lib/model paths do not exist on disk")
	}
}

func TestEmbedding_Similarity_UnavailableReturnsZero(t *testing.T) {
	e := NewEmbedding(EmbeddingConfig{})
	if got := e.Similarity("retry payments", "retry payments"); got != 0 {
		t.Errorf("expected Similarity() to return 0 when the model cannot load, got %v", got)
	}
}
