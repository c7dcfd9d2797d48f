package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gorilla/websocket"
	"github.com/muurk/trackd/internal/logging"
	"go.uber.org/zap"
)

// Dial connects to a feed at url (ws://host:port/feed) and returns a channel
// of decoded events. The channel is closed when ctx is cancelled or the
// connection fails.
func Dial(ctx context.Context, url string) (<-chan Event, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to feed %s: %w", url, err)
	}

	events := make(chan Event, clientQueueSize)
	done := make(chan struct{})

	go closeOnCancel(ctx, conn, done)

	go func() {
		defer close(done)
		defer close(events)
		defer func() { _ = conn.Close() }()

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					logging.Info("Feed connection closed",
						zap.String("url", url),
						zap.Error(err),
					)
				}
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}

			var e Event
			if err := json.Unmarshal(data, &e); err != nil {
				logging.Warn("Ignoring malformed feed event",
					zap.String("url", url),
					zap.Error(err),
				)
				continue
			}

			select {
			case events <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// closeOnCancel closes c when ctx is cancelled. It returns without closing
// once done is closed.
func closeOnCancel(ctx context.Context, c io.Closer, done <-chan struct{}) {
	select {
	case <-ctx.Done():
		_ = c.Close()
	case <-done:
	}
}
