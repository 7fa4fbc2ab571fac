package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fulvian/devstream/internal/retry"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "embeddinggemma"
	DefaultLocalModel  = "local-hash"

	// Default endpoints
	DefaultJinaURL   = "https://api.jina.ai/v1/embeddings"
	DefaultOllamaURL = "http://localhost:11434"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	OllamaDimension = 768
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	DefaultTimeout = 30 * time.Second
)

// Environment variables read when no explicit key is configured
const (
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// ProviderOptions configures a remote provider
type ProviderOptions struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
	Retry     retry.Config
}

func (o ProviderOptions) withDefaults(baseURL, model string, dimension int) ProviderOptions {
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.Model == "" {
		o.Model = model
	}
	if o.Dimension <= 0 {
		o.Dimension = dimension
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry = retry.DefaultConfig()
	}
	return o
}

// apiStatusError is a non-200 response from an embedding endpoint
type apiStatusError struct {
	StatusCode int
	Body       string
}

func (e *apiStatusError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Body)
}

// classifyStatus marks client errors other than rate limiting as permanent
func classifyStatus(code int, body []byte) error {
	err := &apiStatusError{StatusCode: code, Body: strings.TrimSpace(string(body))}
	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}

// postJSON sends body to url and decodes a 200 response into out
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return classifyStatus(resp.StatusCode, bodyBytes)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// JinaProvider implements Embedder using Jina AI API
type JinaProvider struct {
	opts       ProviderOptions
	httpClient *http.Client
}

// NewJinaProvider creates a new Jina AI embedder
func NewJinaProvider(opts ProviderOptions) (*JinaProvider, error) {
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv(EnvJinaAPIKey)
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}

	opts = opts.withDefaults(DefaultJinaURL, DefaultJinaModel, JinaDimension)
	return &JinaProvider{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}, nil
}

func (j *JinaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return singleFromBatch(ctx, j, req)
}

func (j *JinaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = j.opts.Model
	}

	embeddings, err := retry.Do(ctx, j.opts.Retry, func(ctx context.Context) ([]*Embedding, error) {
		return j.callAPI(ctx, req.Texts, model)
	})
	if err != nil {
		return nil, wrapProviderError(ProviderJina, err)
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderJina,
		Model:      model,
	}, nil
}

func (j *JinaProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": model,
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := postJSON(ctx, j.httpClient, j.opts.BaseURL, j.opts.APIKey, reqBody, &apiResp); err != nil {
		return nil, err
	}

	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data))
	}

	embeddings := make([]*Embedding, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		embeddings[data.Index] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  ProviderJina,
			Model:     model,
			Hash:      ComputeHash(texts[data.Index]),
		}
	}

	return embeddings, nil
}

func (j *JinaProvider) Dimension() int {
	return j.opts.Dimension
}

func (j *JinaProvider) Provider() string {
	return ProviderJina
}

func (j *JinaProvider) Model() string {
	return j.opts.Model
}

func (j *JinaProvider) Close() error {
	j.httpClient.CloseIdleConnections()
	return nil
}

// OllamaProvider implements Embedder against a local Ollama server
type OllamaProvider struct {
	opts       ProviderOptions
	httpClient *http.Client
}

// NewOllamaProvider creates an embedder backed by Ollama's /api/embed endpoint
func NewOllamaProvider(opts ProviderOptions) (*OllamaProvider, error) {
	opts = opts.withDefaults(DefaultOllamaURL, DefaultOllamaModel, OllamaDimension)
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	return &OllamaProvider{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}, nil
}

func (o *OllamaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return singleFromBatch(ctx, o, req)
}

func (o *OllamaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = o.opts.Model
	}

	embeddings, err := retry.Do(ctx, o.opts.Retry, func(ctx context.Context) ([]*Embedding, error) {
		return o.callAPI(ctx, req.Texts, model)
	})
	if err != nil {
		return nil, wrapProviderError(ProviderOllama, err)
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderOllama,
		Model:      model,
	}, nil
}

func (o *OllamaProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	reqBody := map[string]interface{}{
		"model": model,
		"input": texts,
	}

	var apiResp struct {
		Model      string      `json:"model"`
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := postJSON(ctx, o.httpClient, o.opts.BaseURL+"/api/embed", "", reqBody, &apiResp); err != nil {
		return nil, err
	}

	if len(apiResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Embeddings))
	}

	embeddings := make([]*Embedding, len(texts))
	for i, vec := range apiResp.Embeddings {
		embeddings[i] = &Embedding{
			Vector:    vec,
			Dimension: len(vec),
			Provider:  ProviderOllama,
			Model:     model,
			Hash:      ComputeHash(texts[i]),
		}
	}
	return embeddings, nil
}

func (o *OllamaProvider) Dimension() int {
	return o.opts.Dimension
}

func (o *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (o *OllamaProvider) Model() string {
	return o.opts.Model
}

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider derives deterministic unit vectors from the text hash.
// It needs no network and is used for offline mode and tests.
type LocalProvider struct {
	model     string
	dimension int
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(dimension int) (*LocalProvider, error) {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{
		model:     DefaultLocalModel,
		dimension: dimension,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Embedding{
		Vector:    l.vectorFor(req.Text),
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      ComputeHash(req.Text),
	}, nil
}

// vectorFor expands the text's SHA-256 into dimension values by hashing
// with a running counter, then normalizes to unit length.
func (l *LocalProvider) vectorFor(text string) []float32 {
	vector := make([]float32, l.dimension)
	seed := sha256.Sum256([]byte(text))

	var block [sha256.Size]byte
	var counter [8]byte
	for i := 0; i < l.dimension; i++ {
		if i%sha256.Size == 0 {
			binary.LittleEndian.PutUint64(counter[:], uint64(i/sha256.Size))
			block = sha256.Sum256(append(seed[:], counter[:]...))
		}
		vector[i] = float32(block[i%sha256.Size])/127.5 - 1.0
	}

	return NormalizeVector(vector)
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text, Model: req.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}
