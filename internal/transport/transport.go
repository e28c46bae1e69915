// Package transport abstracts outbound chat delivery so the delivery
// engine and the command surface never touch a platform SDK directly.
package transport

import "context"

// Transport delivers a text message to a chat. Implementations handle
// connection management, pacing, and platform error mapping.
type Transport interface {
	// Send delivers text to the chat identified by chatID. A returned
	// error should be classifiable via Classify.
	Send(ctx context.Context, chatID int64, text string) error
}
