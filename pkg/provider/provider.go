// Package provider implements the interchangeable embedding backends: two
// on-device hashed n-gram encoders and an OpenAI-compatible remote API
// client. A provider instance is not safe for concurrent use; the retrieval
// engine serializes all calls through its worker queue.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Variant identifies an embedding backend.
type Variant string

const (
	// VariantLocalUSE is the on-device universal sentence encoder, dim 384.
	VariantLocalUSE Variant = "local-use"

	// VariantLocalBERT is the on-device BERT-style encoder, dim 512.
	VariantLocalBERT Variant = "local-bert"

	// VariantOpenAI is the hosted embedding API, dim 1536 by default.
	VariantOpenAI Variant = "openai"
)

// Valid reports whether v names a known backend.
func (v Variant) Valid() bool {
	switch v {
	case VariantLocalUSE, VariantLocalBERT, VariantOpenAI:
		return true
	}
	return false
}

// Common errors
var (
	// ErrEmptyText is returned when an empty text string is provided.
	ErrEmptyText = errors.New("provider: empty text provided")

	// ErrNotInitialized is returned when Embed is called before Init.
	ErrNotInitialized = errors.New("provider: not initialized")

	// ErrMissingCredential is returned when a remote backend has no API key.
	ErrMissingCredential = errors.New("provider: missing API credential")

	// ErrUnknownVariant is returned by New for an unrecognized variant name.
	ErrUnknownVariant = errors.New("provider: unknown variant")
)

// Provider is the uniform contract over all embedding backends.
//
// Init must be idempotent. Embed must not be called concurrently: the local
// encoders reuse internal buffers and the remote backend is subject to
// per-key rate limits.
type Provider interface {
	// Init prepares the backend (loads the model artifact or validates the
	// credential). Safe to call more than once.
	Init(ctx context.Context) error

	// Embed converts a single text into a vector of exactly Dim() elements.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dim returns the dimension of vectors produced by this backend.
	Dim() int

	// Variant returns the backend identifier.
	Variant() Variant

	// Close releases any resources held by the backend.
	Close() error
}

// Config selects and configures a backend for New.
type Config struct {
	Variant Variant

	// ModelPath is the model artifact file for the local variants.
	ModelPath string

	// APIKey, Model and Endpoint configure the remote variant. Model and
	// Endpoint fall back to the OpenAI defaults when empty.
	APIKey   string
	Model    string
	Endpoint string
}

// New builds the provider for the configured variant. It does not call Init.
func New(cfg Config) (Provider, error) {
	switch cfg.Variant {
	case VariantLocalUSE:
		return NewLocalUSE(cfg.ModelPath), nil
	case VariantLocalBERT:
		return NewLocalBERT(cfg.ModelPath), nil
	case VariantOpenAI:
		return NewOpenAI(OpenAIConfig{
			APIKey:   cfg.APIKey,
			Model:    cfg.Model,
			Endpoint: cfg.Endpoint,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, cfg.Variant)
	}
}
