//go:build onnx

// Package onnx provides a local embedder backed by ONNX Runtime and a
// MiniLM-class sentence-transformer model. Build with -tags onnx.
package onnx

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath points at the exported model.onnx file. Required.
	ModelPath string

	// TokenizerPath points at the HuggingFace tokenizer.json. Required.
	TokenizerPath string

	// LibraryPath points at libonnxruntime.so. Empty uses the runtime's
	// default search path.
	LibraryPath string

	// Dimensions is the embedding width. Default: 384 (all-MiniLM-L6-v2).
	Dimensions int

	// MaxTokens is the sequence length including [CLS]/[SEP]. Default: 128.
	MaxTokens int
}

// Embedder runs sentence-transformer inference locally.
type Embedder struct {
	session *ort.DynamicAdvancedSession
	vocab   map[string]int
	dims    int
	maxLen  int
}

const (
	clsToken = 101
	sepToken = 102
	unkToken = 100
)

// New initializes the ONNX runtime and loads the model and tokenizer.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx: ModelPath is required")
	}
	if cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("onnx: TokenizerPath is required")
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 384
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 128
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("onnx: initialize runtime: %w", err)
	}

	vocab, err := loadVocab(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}

	return &Embedder{
		session: session,
		vocab:   vocab,
		dims:    cfg.Dimensions,
		maxLen:  cfg.MaxTokens,
	}, nil
}

// Embed tokenizes text, runs inference, mean-pools over attended positions,
// and returns a unit-normalized vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	inputIDs := make([]int64, e.maxLen)
	attention := make([]int64, e.maxLen)
	tokenTypes := make([]int64, e.maxLen)

	tokens := e.tokenize(text)
	if len(tokens) > e.maxLen-2 {
		tokens = tokens[:e.maxLen-2]
	}
	inputIDs[0] = clsToken
	attention[0] = 1
	for i, tok := range tokens {
		inputIDs[i+1] = tok
		attention[i+1] = 1
	}
	inputIDs[len(tokens)+1] = sepToken
	attention[len(tokens)+1] = 1

	shape := ort.NewShape(1, int64(e.maxLen))
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx: input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, attention)
	if err != nil {
		return nil, fmt.Errorf("onnx: attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typesTensor, err := ort.NewTensor(shape, tokenTypes)
	if err != nil {
		return nil, fmt.Errorf("onnx: token_type_ids tensor: %w", err)
	}
	defer typesTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{idsTensor, maskTensor, typesTensor}, outputs); err != nil {
		return nil, fmt.Errorf("onnx: inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnx: unexpected output tensor type")
	}
	return e.pool(hidden, attention)
}

// pool mean-pools the hidden states over attended token positions and
// normalizes the result to a unit vector.
func (e *Embedder) pool(hidden *ort.Tensor[float32], attention []int64) ([]float32, error) {
	shape := hidden.GetShape()
	data := hidden.GetData()

	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("onnx: unexpected output shape %v", shape)
	}
	seqLen, width := int(shape[1]), int(shape[2])
	if width != e.dims {
		return nil, fmt.Errorf("onnx: model width %d, configured %d", width, e.dims)
	}

	out := make([]float32, e.dims)
	attended := 0
	for i := 0; i < seqLen && i < len(attention); i++ {
		if attention[i] == 0 {
			continue
		}
		attended++
		row := data[i*width : (i+1)*width]
		for j, v := range row {
			out[j] += v
		}
	}
	if attended == 0 {
		return nil, fmt.Errorf("onnx: no attended tokens")
	}

	var norm float64
	for j := range out {
		out[j] /= float32(attended)
		norm += float64(out[j]) * float64(out[j])
	}
	if norm > 0 {
		scale := float32(1.0 / math.Sqrt(norm))
		for j := range out {
			out[j] *= scale
		}
	}
	return out, nil
}

// Dimensions returns the embedding width.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// Close destroys the inference session.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

// tokenize lowercases, strips edge punctuation, and applies greedy
// longest-match WordPiece with "##" continuation pieces.
func (e *Embedder) tokenize(text string) []int64 {
	var ids []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()")
		if word == "" {
			continue
		}
		if id, ok := e.vocab[word]; ok {
			ids = append(ids, int64(id))
			continue
		}
		ids = append(ids, e.wordPiece(word)...)
	}
	return ids
}

func (e *Embedder) wordPiece(word string) []int64 {
	var ids []int64
	start := 0
	for start < len(word) {
		end := len(word)
		matched := false
		for end > start {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := e.vocab[piece]; ok {
				ids = append(ids, int64(id))
				start = end
				matched = true
				break
			}
			end--
		}
		if !matched {
			ids = append(ids, unkToken)
			start++
		}
	}
	return ids
}

// loadVocab reads the vocab table out of a HuggingFace tokenizer.json.
func loadVocab(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Model.Vocab) == 0 {
		return nil, fmt.Errorf("empty vocab in %s", path)
	}
	return file.Model.Vocab, nil
}
