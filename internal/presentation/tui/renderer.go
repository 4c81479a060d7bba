package tui

import (
	"github.com/charmbracelet/glamour"
)

// replyWidth keeps rendered replies readable in a terminal; generated texts
// can run long and unwrapped lines defeat the chat layout.
const replyWidth = 100

// NewRenderer returns a function that renders a gateway reply as markdown.
// When the glamour renderer cannot be built (e.g. a dumb terminal), replies
// pass through unchanged rather than failing the chat loop.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(replyWidth),
		glamour.WithEmoji(),
	)
	if err != nil {
		return func(reply string) (string, error) {
			return reply + "\n", nil
		}
	}

	return func(reply string) (string, error) {
		return r.Render(reply)
	}
}
