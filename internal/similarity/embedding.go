package similarity

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/hybridgroup/yzma/pkg/llama"
)

// Package-level library initialization. llama.Load() and llama.Init() are
// process-global operations that must only happen once per binary.
var (
	libOnce    sync.Once
	libLoadErr error
)

func loadLib(libPath string) error {
	libOnce.Do(func() {
		if err := llama.Load(libPath); err != nil {
			libLoadErr = fmt.Errorf("loading yzma shared library from %q: %w", libPath, err)
			return
		}
		llama.LogSet(llama.LogSilent())
		llama.Init()
	})
	return libLoadErr
}

// EmbeddingConfig configures the local embedding model used by Embedding.
type EmbeddingConfig struct {
	// LibPath is the directory containing llama.cpp shared libraries
	// (.so/.dylib). Falls back to the YZMA_LIB environment variable.
	LibPath string

	// ModelPath is the path to the GGUF embedding model file.
	ModelPath string

	// GPULayers is the number of layers to offload to GPU (0 = CPU only).
	GPULayers int
}

// Embedding is an Estimator that computes cosine similarity between two
// KPT bodies using a local GGUF embedding model, via hybridgroup/yzma
// (purego bindings over llama.cpp). It never makes a network call, which
// keeps it usable as Open Question 3's deterministic cross-check even when
// no LLM provider is configured at all.
//
// KPT bodies are short (a sentence or two), so embeddings are recomputed
// per comparison rather than persisted in a vector index: a playbook is
// capped at DefaultMaxKPTs entries, and pairwise cosine comparison at that
// scale is cheap relative to the LLM round-trip it's cross-checking.
type Embedding struct {
	libPath   string
	modelPath string
	gpuLayers int

	mu      sync.Mutex
	model   llama.Model
	vocab   llama.Vocab
	nEmbd   int32
	loaded  bool
	loadErr error
	once    sync.Once
}

// NewEmbedding creates a new Embedding estimator. The model is not loaded
// until the first call to Similarity.
func NewEmbedding(cfg EmbeddingConfig) *Embedding {
	libPath := cfg.LibPath
	if libPath == "" {
		libPath = os.Getenv("YZMA_LIB")
	}
	return &Embedding{
		libPath:   libPath,
		modelPath: cfg.ModelPath,
		gpuLayers: cfg.GPULayers,
	}
}

// Available returns true if both the library directory and model file
// exist on disk. This is a cheap check that does not load the model.
func (e *Embedding) Available() bool {
	if e.libPath == "" || e.modelPath == "" {
		return false
	}
	if info, err := os.Stat(e.libPath); err != nil || !info.IsDir() {
		return false
	}
	_, err := os.Stat(e.modelPath)
	return err == nil
}

func (e *Embedding) loadModel() error {
	e.once.Do(func() {
		if e.modelPath == "" {
			e.loadErr = fmt.Errorf("no embedding model path configured")
			return
		}
		if e.libPath == "" {
			e.loadErr = fmt.Errorf("no library path configured (set EmbeddingConfig.LibPath or YZMA_LIB)")
			return
		}
		if err := loadLib(e.libPath); err != nil {
			e.loadErr = err
			return
		}

		modelParams := llama.ModelDefaultParams()
		gpuLayers := e.gpuLayers
		if gpuLayers > math.MaxInt32 {
			gpuLayers = math.MaxInt32
		}
		modelParams.NGpuLayers = int32(gpuLayers)

		model, err := llama.ModelLoadFromFile(e.modelPath, modelParams)
		if err != nil {
			e.loadErr = fmt.Errorf("loading embedding model %s: %w", e.modelPath, err)
			return
		}
		if model == 0 {
			e.loadErr = fmt.Errorf("loading embedding model %s: returned null handle", e.modelPath)
			return
		}

		e.model = model
		e.vocab = llama.ModelGetVocab(model)
		e.nEmbd = int32(llama.ModelNEmbd(model))
		e.loaded = true
	})
	return e.loadErr
}

// embed returns an L2-normalized dense vector for text. A fresh llama
// context is created per call and freed immediately.
func (e *Embedding) embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.loadModel(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	tokens := llama.Tokenize(e.vocab, text, true, true)

	ctxParams := llama.ContextDefaultParams()
	nTokens := len(tokens) + 64
	if nTokens > math.MaxUint32 {
		nTokens = math.MaxUint32
	}
	ctxParams.NCtx = uint32(nTokens)

	lctx, err := llama.InitFromModel(e.model, ctxParams)
	if err != nil {
		return nil, fmt.Errorf("creating embedding context: %w", err)
	}
	defer func() { _ = llama.Free(lctx) }()

	llama.SetEmbeddings(lctx, true)

	batch := llama.BatchGetOne(tokens)
	if _, err := llama.Decode(lctx, batch); err != nil {
		return nil, fmt.Errorf("decoding tokens: %w", err)
	}

	rawVec, err := llama.GetEmbeddingsSeq(lctx, 0, e.nEmbd)
	if err != nil {
		return nil, fmt.Errorf("getting embeddings: %w", err)
	}

	vec := make([]float32, len(rawVec))
	copy(vec, rawVec)
	l2Normalize(vec)
	return vec, nil
}

// Similarity embeds both bodies and returns their cosine similarity. On any
// embedding failure (model unavailable, load error) it returns 0 rather
// than propagating the error, since callers use Similarity purely as an
// optional cross-check and must never block a merge decision on it.
func (e *Embedding) Similarity(a, b string) float64 {
	ctx := context.Background()
	vecA, err := e.embed(ctx, a)
	if err != nil {
		return 0
	}
	vecB, err := e.embed(ctx, b)
	if err != nil {
		return 0
	}
	return cosineSimilarity(vecA, vecB)
}

// cosineSimilarity computes the cosine similarity between two float32
// vectors. Returns 0 if either vector has zero magnitude or the vectors
// have different lengths.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	magA = math.Sqrt(magA)
	magB = math.Sqrt(magB)
	if magA == 0 || magB == 0 {
		return 0.0
	}
	return dot / (magA * magB)
}

// l2Normalize performs in-place L2 normalization of a float32 vector.
func l2Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
