// Package messages defines Bubbletea message types for the TUI.
// Messages represent events that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/kb-cli/internal/core/domain"
)

// AnswerReceived carries the outcome of one question back to the model.
type AnswerReceived struct {
	Question string
	Answer   *domain.Answer
	Err      error
}

// Quit signals the application should exit.
type Quit struct{}
