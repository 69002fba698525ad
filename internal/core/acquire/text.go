package acquire

import (
	"context"
	"fmt"
	"strings"

	"meal2list/internal/pkg/common"
)

// TextAdapter accepts recipe text typed directly by the user
type TextAdapter struct {
	maxLength int
}

// NewTextAdapter creates a text adapter
func NewTextAdapter(maxLength int) *TextAdapter {
	if maxLength <= 0 {
		maxLength = common.MaxRecipeTextLength
	}
	return &TextAdapter{maxLength: maxLength}
}

// ProduceRecipeText validates the typed text and passes it through
func (a *TextAdapter) ProduceRecipeText(_ context.Context, text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", common.NewValidationError("recipe text must not be empty")
	}
	if len(trimmed) > a.maxLength {
		return "", common.NewValidationError(
			fmt.Sprintf("recipe text exceeds the maximum length of %d characters", a.maxLength))
	}
	return trimmed, nil
}
