package transport

import "context"

// Category is a coarse content classification of an inbound post.
// It exists for log context only and never affects forwarding behavior.
type Category string

const (
	CategoryText     Category = "text"
	CategoryPhoto    Category = "photo"
	CategoryVideo    Category = "video"
	CategoryDocument Category = "document"
	CategoryAudio    Category = "audio"
	CategoryVoice    Category = "voice"
	CategorySticker  Category = "sticker"
	CategoryPoll     Category = "poll"
)

type UpdateKind string

const (
	UpdatePost    UpdateKind = "post"
	UpdateCommand UpdateKind = "command"
)

type Update struct {
	Kind    UpdateKind
	Post    *Post
	Command *Command
}

// Post is a channel post observed by the adapter. The pair (ChatID, MessageID)
// is the opaque handle every relay attempt operates on; the payload itself
// never leaves the platform.
type Post struct {
	ChatID    int64
	MessageID int
	Category  Category
}

// Ref returns the relayable handle for the post.
func (p *Post) Ref() MessageRef {
	return MessageRef{ChatID: p.ChatID, MessageID: p.MessageID}
}

// Command is an operator command addressed to the bot.
type Command struct {
	ChatID       int64
	FromID       int64
	FromUsername string
	Name         string // without leading slash, e.g. "status"
}

// ChatTarget identifies a destination chat.
type ChatTarget struct {
	ChatID int64
}

// MessageRef identifies a concrete message inside a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Relayer is the single delivery capability the core depends on: attempt to
// relay a message to one destination. Failures are reported through the
// classified errors in this package.
type Relayer interface {
	Relay(ctx context.Context, msg MessageRef, to ChatTarget) error
}

type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string) (MessageRef, error)
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	Relayer
	Sender
}
