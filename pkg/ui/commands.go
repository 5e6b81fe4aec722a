package ui

import (
	"context"
	"time"

	"cci_chat/pkg/chat"
	"cci_chat/pkg/embed"

	tea "charm.land/bubbletea/v2"
)

// chatIDMsg reports the result of the startup chat id acquisition.
type chatIDMsg struct {
	chatID string
	err    error
}

// historyMsg carries fetched history.
type historyMsg struct {
	messages []chat.Message
	err      error
}

// sendResultMsg carries the outcome of a send.
type sendResultMsg struct {
	result chat.SendResult
	err    error
}

// revealTickMsg advances the reveal identified by gen.
type revealTickMsg struct {
	gen int
}

// bridgeEventMsg is an accepted message from the embedding host.
type bridgeEventMsg struct {
	event embed.Event
}

// bridgeClosedMsg means the bridge stopped delivering events.
type bridgeClosedMsg struct{}

// closeResultMsg is the outcome of the explicit close handshake.
type closeResultMsg struct {
	err error
}

// clearNoticeMsg hides a transient header notice.
type clearNoticeMsg struct {
	seq int
}

const noticeDuration = 2 * time.Second

func ensureChatIDCmd(ctx context.Context, svc *chat.Service) tea.Cmd {
	return func() tea.Msg {
		id, err := svc.EnsureChatID(ctx)
		return chatIDMsg{chatID: id, err: err}
	}
}

func loadHistoryCmd(ctx context.Context, svc *chat.Service) tea.Cmd {
	return func() tea.Msg {
		messages, err := svc.History(ctx)
		return historyMsg{messages: messages, err: err}
	}
}

func sendCmd(ctx context.Context, svc *chat.Service, content string) tea.Cmd {
	return func() tea.Msg {
		res, err := svc.Send(ctx, content)
		return sendResultMsg{result: res, err: err}
	}
}

func revealTickCmd(interval time.Duration, gen int) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return revealTickMsg{gen: gen}
	})
}

func reportEndCmd(ctx context.Context, svc *chat.Service) tea.Cmd {
	return func() tea.Msg {
		return closeResultMsg{err: svc.ReportEnd(ctx)}
	}
}

func listenBridgeCmd(events <-chan embed.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return bridgeClosedMsg{}
		}
		return bridgeEventMsg{event: ev}
	}
}

func clearNoticeCmd(seq int) tea.Cmd {
	return tea.Tick(noticeDuration, func(time.Time) tea.Msg {
		return clearNoticeMsg{seq: seq}
	})
}
