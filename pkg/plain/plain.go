// Package plain is the line-oriented chat used when stdout is not a
// terminal: one visitor line in, one revealed reply out.
package plain

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"cci_chat/pkg/chat"
	"cci_chat/pkg/commands"
)

// Options configure a Runner.
type Options struct {
	AssistantName  string
	Welcome        string
	RevealInterval time.Duration
	In             io.Reader
	Out            io.Writer
}

// Runner reads visitor lines and prints replies.
type Runner struct {
	svc      *chat.Service
	conv     *chat.Conversation
	commands *commands.Dispatcher
	name     string
	interval time.Duration
	in       io.Reader
	out      io.Writer
}

// New creates a runner for svc.
func New(svc *chat.Service, opts Options) *Runner {
	if opts.AssistantName == "" {
		opts.AssistantName = "Assistant"
	}
	return &Runner{
		svc:      svc,
		conv:     chat.NewConversation(opts.Welcome),
		commands: commands.NewDispatcher(),
		name:     opts.AssistantName,
		interval: opts.RevealInterval,
		in:       opts.In,
		out:      opts.Out,
	}
}

// Conversation returns the session state.
func (r *Runner) Conversation() *chat.Conversation {
	return r.conv
}

// Run prints the welcome turn and any restored history, then serves lines
// until EOF, /quit or ctx is done. Lines naming a registered slash command
// run that command instead of being sent.
func (r *Runner) Run(ctx context.Context) error {
	r.start(ctx)

	done := make(chan struct{})
	defer close(done)
	lines, readErr := r.readLines(done)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(r.out, "> ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				return <-readErr
			}
			line = l
		}
		// A line that raced with cancellation is dropped, not sent.
		if ctx.Err() != nil {
			return nil
		}

		if h, ok := r.commands.Lookup(line); ok {
			res := h.Execute(commands.NewContext(r.conv, r.svc.ChatID(), r.svc.Tab()))
			if res.Content != "" {
				fmt.Fprintln(r.out, res.Content)
			}
			if res.Quit {
				return nil
			}
			continue
		}
		if err := r.send(ctx, line); err != nil {
			return err
		}
	}
}

// readLines scans r.in on its own goroutine so a blocked read never holds
// up cancellation. The goroutine exits at EOF or once done is closed and
// the pending read returns.
func (r *Runner) readLines(done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

func (r *Runner) start(ctx context.Context) {
	for _, msg := range r.conv.Messages() {
		r.printTurn(msg)
	}

	if r.svc.ChatID() == "" {
		if _, err := r.svc.EnsureChatID(ctx); err != nil {
			r.printTurn(r.conv.AppendError(chat.InitFailedText))
			return
		}
	}

	r.conv.BeginHistoryLoad()
	history, err := r.svc.History(ctx)
	if err != nil {
		r.conv.EndHistoryLoad()
		r.printTurn(r.conv.AppendError(chat.HistoryFailedText))
		return
	}
	r.conv.ApplyHistory(history)
	for _, msg := range history {
		r.printTurn(msg)
	}
}

func (r *Runner) send(ctx context.Context, line string) error {
	if _, ok := r.conv.AppendVisitor(line); !ok {
		return nil
	}

	res, err := r.svc.Send(ctx, line)
	if err != nil {
		text := chat.SendFailedText
		if res.ChatID == "" {
			text = chat.InitFailedText
		}
		r.printTurn(r.conv.AppendError(text))
		return nil
	}

	id := chat.NewID("stream")
	r.conv.StartStreaming(id)

	// Reveal the display form so blocks appear on their own lines.
	display := strings.Join(chat.SplitBlocks(res.Reply), "\n")
	fmt.Fprintf(r.out, "%s: ", r.name)
	printed := 0
	err = chat.Run(ctx, chat.NewReveal(id, display), r.interval, func(prefix string) {
		fmt.Fprint(r.out, prefix[printed:])
		printed = len(prefix)
		r.conv.SetStreamingContent(prefix)
	})
	fmt.Fprintln(r.out)

	if err != nil {
		r.conv.CancelStreaming()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			slog.Info("plain_reveal_interrupted", "chat_id", res.ChatID)
			return nil
		}
		return err
	}
	r.conv.FinishStreaming(res.Reply)
	return nil
}

func (r *Runner) printTurn(msg chat.Message) {
	who := r.name
	if msg.Role == chat.RoleCustomer {
		who = "You"
	}
	if msg.IsError() {
		fmt.Fprintf(r.out, "! %s\n", msg.Content)
		return
	}
	fmt.Fprintf(r.out, "%s: %s\n", who, strings.Join(chat.SplitBlocks(msg.Content), "\n"))
}
