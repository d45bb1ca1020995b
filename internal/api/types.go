package api

import "github.com/samcharles93/charlm/internal/model"

// GenerateRequest is the body of POST /v1/generate.
type GenerateRequest struct {
	Prompt       string  `json:"prompt"`
	MaxNewTokens *int    `json:"max_new_tokens,omitempty"`
	Seed         *uint64 `json:"seed,omitempty"`
	Stream       bool    `json:"stream,omitempty"`
}

// GenerateResponse is returned by POST /v1/generate. Text is the prompt
// followed by Completion.
type GenerateResponse struct {
	ID         string `json:"id"`
	Object     string `json:"object"`
	Created    int64  `json:"created"`
	Prompt     string `json:"prompt"`
	Text       string `json:"text"`
	Completion string `json:"completion"`
	Usage      Usage  `json:"usage"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// GenerateChunk is one server-sent event of a streamed generation.
type GenerateChunk struct {
	ID           string  `json:"id"`
	Object       string  `json:"object"`
	Created      int64   `json:"created"`
	Delta        string  `json:"delta"`
	FinishReason *string `json:"finish_reason"`
	Usage        *Usage  `json:"usage,omitempty"`
}

// ModelInfo is returned by GET /v1/model.
type ModelInfo struct {
	Object     string       `json:"object"`
	Config     model.Config `json:"config"`
	VocabSize  int          `json:"vocab_size"`
	Vocabulary string       `json:"vocabulary"`
	Params     int          `json:"params"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error ResponseError `json:"error"`
}
