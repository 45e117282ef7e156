package llm

import "errors"

var (
	// ErrEmbeddingBackend is returned when the embeddings API fails
	// after exhausting retries.
	ErrEmbeddingBackend = errors.New("embedding backend error")
	// ErrGenerationBackend is returned when the chat completions API
	// fails after exhausting retries.
	ErrGenerationBackend = errors.New("generation backend error")
)

// Message represents a single message in a chat conversation.
// The RAG engine builds the final prompt as an ordered message list.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// Model specifies the model to use. If empty, the client's default model is used.
	Model string

	// MaxTokens specifies the maximum number of tokens to generate.
	// If 0, no limit is applied.
	MaxTokens int

	// Temperature controls the randomness of the output.
	Temperature float32
}
