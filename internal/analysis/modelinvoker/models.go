// internal/analysis/modelinvoker/models.go
package modelinvoker

import "usability-workers/internal/common/validation"

// --- request ---

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

// chatMessage content is either a string or a []contentPart.
type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail"`
}

// --- response ---

type chatCompletion struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Usage   usage    `json:"usage"`
	Choices []choice `json:"choices"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type choice struct {
	Index   int             `json:"index"`
	Message responseMessage `json:"message"`
}

type responseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

var chatCompletionSchema = validation.MustCompile("chat.completion", `{
  "type": "object",
  "required": ["id", "created", "model", "usage", "choices"],
  "properties": {
    "id": {"type": "string"},
    "created": {"type": "integer"},
    "model": {"type": "string"},
    "usage": {
      "type": "object",
      "required": ["prompt_tokens", "completion_tokens", "total_tokens"],
      "properties": {
        "prompt_tokens": {"type": "integer"},
        "completion_tokens": {"type": "integer"},
        "total_tokens": {"type": "integer"}
      }
    },
    "choices": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["index", "message"],
        "properties": {
          "index": {"type": "integer"},
          "message": {
            "type": "object",
            "required": ["role", "content"],
            "properties": {
              "role": {"type": "string"},
              "content": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`)
