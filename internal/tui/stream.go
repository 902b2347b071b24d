package tui

import (
	"context"
	"errors"
	"fmt"

	tea "charm.land/bubbletea/v2"

	"github.com/kztmrk/kaiwa/internal/agent"
	"github.com/kztmrk/kaiwa/internal/chat"
)

// streamBufferSize is the channel buffer for stream events. Large enough to
// absorb bursts without blocking the producer goroutine.
const streamBufferSize = 100

// streamEvent is a discriminated union carried on a single channel so event
// ordering is preserved (text before done, done after all text).
type streamEvent struct {
	text      string       // chunk of response text
	status    string       // search progress line; hasStatus marks validity
	hasStatus bool         // distinguishes "clear status" from "no status"
	reply     *agent.Reply // set when done
	err       error        // set on failure
	done      bool         // marks stream completion
}

// streamStartedMsg is delivered once the stream goroutine is running.
type streamStartedMsg struct {
	cancel  context.CancelFunc
	eventCh <-chan streamEvent
}

// streamTextMsg delivers a chunk of streamed response text.
type streamTextMsg struct{ text string }

// streamSearchMsg updates or clears the search progress line.
type streamSearchMsg struct{ status string }

// streamDoneMsg marks a successfully completed turn.
type streamDoneMsg struct{ reply *agent.Reply }

// streamErrorMsg marks a failed turn. Partial output stays visible.
type streamErrorMsg struct{ err error }

// startStream launches the response goroutine and returns a command that
// delivers streamStartedMsg. The goroutine owns the event channel and always
// closes it after sending exactly one completion event.
func (t *TUI) startStream(input string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(t.ctx, streamTimeout)
		eventCh := make(chan streamEvent, streamBufferSize)

		// Snapshot before responding so a /clear during the turn is
		// detected and the output discarded.
		snapshot, epoch := t.history.Snapshot()

		go func() {
			defer close(eventCh)
			defer cancel()

			completed := false
			defer func() {
				if r := recover(); r != nil {
					eventCh <- streamEvent{err: fmt.Errorf("internal error: %v", r), done: true}
					return
				}
				// Guarantee exactly one completion event.
				if !completed {
					eventCh <- streamEvent{err: errors.New("stream ended unexpectedly"), done: true}
				}
			}()

			reply, err := t.responder.Respond(ctx, input, agent.Options{
				History: snapshot,
				OnChunk: func(ctx context.Context, chunk string) error {
					select {
					case eventCh <- streamEvent{text: chunk}:
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				},
				OnStatus: func(_ context.Context, status agent.Status) {
					// Best effort: dropping a progress line is preferable
					// to stalling the response.
					select {
					case eventCh <- streamEvent{status: searchStatusText(status), hasStatus: true}:
					default:
					}
				},
			})

			completed = true
			if err != nil {
				eventCh <- streamEvent{err: err, done: true}
				return
			}

			// Record the turn unless the conversation was reset while the
			// response streamed, in which case the output is discarded.
			if appendErr := t.history.Append(epoch, chat.User(input), chat.Assistant(reply.Content)); appendErr != nil && !errors.Is(appendErr, chat.ErrStaleEpoch) {
				eventCh <- streamEvent{err: appendErr, done: true}
				return
			}

			eventCh <- streamEvent{reply: reply, done: true}
		}()

		return streamStartedMsg{cancel: cancel, eventCh: eventCh}
	}
}

// listenForStream returns a command that waits for the next stream event and
// translates it to the matching Bubble Tea message.
func listenForStream(eventCh <-chan streamEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-eventCh
		if !ok {
			return streamErrorMsg{err: errors.New("stream closed unexpectedly")}
		}
		switch {
		case ev.done && ev.err != nil:
			return streamErrorMsg{err: ev.err}
		case ev.done:
			return streamDoneMsg{reply: ev.reply}
		case ev.hasStatus:
			return streamSearchMsg{status: ev.status}
		default:
			return streamTextMsg{text: ev.text}
		}
	}
}

// searchStatusText renders a progress notification as a display line. An
// empty string clears the line.
func searchStatusText(status agent.Status) string {
	switch status.Stage {
	case agent.StageSearching:
		return fmt.Sprintf("🔍 「%s」を検索中...", status.Query)
	case agent.StageRefining:
		return fmt.Sprintf("🔍 クエリを改善して再検索中: 「%s」", status.Query)
	case agent.StageSearchDone:
		return ""
	default:
		return ""
	}
}
