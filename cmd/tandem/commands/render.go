package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/tandem-ai/tandem/internal/event"
	"github.com/tandem-ai/tandem/internal/memory"
)

// consoleRenderer streams conversation progress to the terminal. It
// prints each post's message incrementally as updates arrive, so the
// user watches the reply being written rather than waiting for the
// round to end.
type consoleRenderer struct {
	out io.Writer

	// printed holds the part of each in-flight post's message already on
	// screen, keyed by post ID. Entries are dropped once the post
	// reaches a terminal status.
	printed map[string]string
	open    string // post ID currently mid-line
}

func newConsoleRenderer(out io.Writer) *consoleRenderer {
	return &consoleRenderer{out: out, printed: make(map[string]string)}
}

func (r *consoleRenderer) OnRoundStart(roundID string) {}

func (r *consoleRenderer) OnRoundEnd(roundID string) {
	r.finishLine()
	fmt.Fprintln(r.out)
}

func (r *consoleRenderer) OnPostUpdate(post *memory.Post, status string) {
	done := r.printed[post.ID]
	switch {
	case post.Message == done:
		// Nothing new to show.
	case strings.HasPrefix(post.Message, done):
		if r.open != post.ID {
			r.finishLine()
			fmt.Fprintf(r.out, "[%s] ", post.SendFrom)
			r.open = post.ID
		}
		fmt.Fprint(r.out, post.Message[len(done):])
		r.printed[post.ID] = post.Message
	default:
		// The settled message replaced the partial one outright, for
		// example after escape sequences resolve. Reprint the line.
		r.finishLine()
		fmt.Fprintf(r.out, "[%s] %s", post.SendFrom, post.Message)
		r.open = post.ID
		r.printed[post.ID] = post.Message
	}

	if status == event.StatusEnded || status == event.StatusError {
		if r.open == post.ID {
			r.finishLine()
		}
		delete(r.printed, post.ID)
	}
}

func (r *consoleRenderer) OnError(message string) {
	r.finishLine()
	fmt.Fprintf(r.out, "! %s\n", message)
}

func (r *consoleRenderer) finishLine() {
	if r.open != "" {
		fmt.Fprintln(r.out)
		r.open = ""
	}
}
