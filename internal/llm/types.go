package llm

import "time"

// ReasoningType names the kind of explanation being generated
type ReasoningType string

const (
	ReasoningInvestment ReasoningType = "investment_recommendation"
	ReasoningRisk       ReasoningType = "risk_explanation"
	ReasoningMarket     ReasoningType = "market_update"
)

// Explanation is the natural-language layer attached to a recommendation
type Explanation struct {
	Text          string        `json:"explanation"`
	KeyPoints     []string      `json:"key_points"`
	Warnings      []string      `json:"warnings"`
	Confidence    float64       `json:"confidence"`
	ReasoningType ReasoningType `json:"reasoning_type"`
	GeneratedAt   time.Time     `json:"generated_at"`
	// Fallback is set when the text is canned because the model was unavailable
	Fallback bool `json:"fallback"`
}

// ChatRequest represents a request to an OpenAI-compatible chat API
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
}

// ChatMessage represents a single message in the chat
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatResponse represents the response from the LLM API
type ChatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ErrorResponse represents an error from the LLM API
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
