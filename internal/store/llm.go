package store

import (
	"time"
)

// Exchange is one prompt/response pair sent to the text service.
type Exchange struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"` // e.g. "gemini"
	Model     string    `json:"model"`
	Purpose   string    `json:"purpose"` // "comment" or "reply"
	Attempt   int       `json:"attempt"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Error     string    `json:"error,omitempty"`
}

// SaveExchange writes an exchange for debugging. Returns the path to the
// saved file.
func (s *Store) SaveExchange(exchange Exchange) (string, error) {
	if exchange.Timestamp.IsZero() {
		exchange.Timestamp = s.now()
	}
	return SaveStepOutput(s, StepExchanges, exchange.Purpose, exchange)
}
