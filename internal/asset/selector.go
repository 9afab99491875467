package asset

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
)

// FixedSelector always returns the same index, 0 by default.
type FixedSelector struct {
	Index int
}

// Choose returns the fixed index.
func (s FixedSelector) Choose(context.Context, []string) (int, error) {
	return s.Index, nil
}

// PromptSelector asks the user in the terminal.
type PromptSelector struct {
	// Title is shown above the options.
	Title string
}

// Choose renders a select prompt and returns the picked index.
func (s PromptSelector) Choose(ctx context.Context, options []string) (int, error) {
	title := s.Title
	if title == "" {
		title = "Select a binary to install"
	}

	huhOptions := make([]huh.Option[int], len(options))
	for i, option := range options {
		huhOptions[i] = huh.NewOption(option, i)
	}

	var choice int

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title(title).
				Options(huhOptions...).
				Value(&choice),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return 0, fmt.Errorf("prompt: %w", err)
	}

	return choice, nil
}
