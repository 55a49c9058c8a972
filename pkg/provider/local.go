package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	useDim  = 384
	bertDim = 512
)

// modelArtifact is the JSON model file loaded by the local encoders. It pins
// the hash seed and n-gram order so vectors stay stable across processes.
type modelArtifact struct {
	Name  string `json:"name"`
	Dim   int    `json:"dim"`
	Seed  uint64 `json:"seed"`
	NGram int    `json:"ngram"`
}

// localEncoder is an on-device hashed n-gram sentence encoder. Inference is a
// blocking in-process call and reuses a scratch buffer between calls, so a
// single encoder must never be invoked concurrently.
type localEncoder struct {
	variant     Variant
	dim         int
	modelPath   string
	seed        uint64
	ngram       int
	scratch     []float32
	initialized bool
}

// NewLocalUSE creates the universal-sentence-encoder-style local backend.
// The model artifact at modelPath is loaded on Init.
func NewLocalUSE(modelPath string) Provider {
	return &localEncoder{variant: VariantLocalUSE, dim: useDim, modelPath: modelPath, ngram: 1}
}

// NewLocalBERT creates the BERT-style local backend, which hashes word
// bigrams into a wider vector.
func NewLocalBERT(modelPath string) Provider {
	return &localEncoder{variant: VariantLocalBERT, dim: bertDim, modelPath: modelPath, ngram: 2}
}

// Init loads and validates the model artifact. Idempotent: a second call on
// an initialized encoder is a no-op.
func (e *localEncoder) Init(_ context.Context) error {
	if e.initialized {
		return nil
	}

	data, err := os.ReadFile(e.modelPath)
	if err != nil {
		return fmt.Errorf("provider: load model artifact: %w", err)
	}

	var artifact modelArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return fmt.Errorf("provider: parse model artifact: %w", err)
	}
	if artifact.Dim != e.dim {
		return fmt.Errorf("provider: model artifact dim %d does not match %s dim %d",
			artifact.Dim, e.variant, e.dim)
	}

	e.seed = artifact.Seed
	if artifact.NGram > 0 {
		e.ngram = artifact.NGram
	}
	e.scratch = make([]float32, e.dim)
	e.initialized = true
	return nil
}

// Embed encodes text into an L2-normalized vector of Dim() elements.
func (e *localEncoder) Embed(_ context.Context, text string) ([]float32, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, ErrEmptyText
	}

	for i := range e.scratch {
		e.scratch[i] = 0
	}

	for i := 0; i+e.ngram <= len(tokens); i++ {
		gram := strings.Join(tokens[i:i+e.ngram], " ")
		h := e.hash(gram)
		bucket := int(h % uint64(e.dim))
		// Second hash bit decides the sign to keep buckets zero-centered.
		if h&(1<<63) != 0 {
			e.scratch[bucket]--
		} else {
			e.scratch[bucket]++
		}
	}
	if e.ngram > 1 && len(tokens) < e.ngram {
		// Too short for a full n-gram, fall back to unigrams.
		for _, tok := range tokens {
			h := e.hash(tok)
			e.scratch[int(h%uint64(e.dim))]++
		}
	}

	var norm float64
	for _, v := range e.scratch {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil, errZeroVector(text)
	}

	vec := make([]float32, e.dim)
	for i, v := range e.scratch {
		vec[i] = float32(float64(v) / norm)
	}
	return vec, nil
}

func (e *localEncoder) hash(s string) uint64 {
	h := fnv.New64a()
	var seedBytes [8]byte
	for i := 0; i < 8; i++ {
		seedBytes[i] = byte(e.seed >> (8 * i))
	}
	h.Write(seedBytes[:])
	h.Write([]byte(s))
	return h.Sum64()
}

// Dim returns the declared output dimension.
func (e *localEncoder) Dim() int { return e.dim }

// Variant returns the backend identifier.
func (e *localEncoder) Variant() Variant { return e.variant }

// Close releases the model state and resets the initialized flag so a later
// Init reloads the artifact.
func (e *localEncoder) Close() error {
	e.scratch = nil
	e.initialized = false
	return nil
}

// errZeroVector reports a text whose features cancel to a zero vector. The
// excerpt is truncated on a rune boundary so multi-byte text stays intact.
func errZeroVector(text string) error {
	if len(text) > 30 {
		cut := 30
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return fmt.Errorf("provider: degenerate zero vector for %q", text)
}

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
