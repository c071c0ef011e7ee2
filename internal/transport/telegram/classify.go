package telegram

import (
	"context"
	"errors"
	"net"
	"time"

	tele "gopkg.in/telebot.v4"

	"forwardbot/internal/transport"
)

// permanentAPIErrors are Telegram API conditions retrying cannot fix: the
// destination is gone or the bot lost access to it.
var permanentAPIErrors = []error{
	tele.ErrChatNotFound,
	tele.ErrKickedFromGroup,
	tele.ErrKickedFromSuperGroup,
	tele.ErrKickedFromChannel,
	tele.ErrBlockedByUser,
	tele.ErrNotStartedByUser,
	tele.ErrNoRightsToSend,
}

// classify maps telebot's error types onto the transport taxonomy.
// Errors that fit no known category are returned as-is; the forwarder treats
// unclassified errors as permanent rather than retry blindly.
func classify(err error) error {
	if err == nil {
		return nil
	}

	// Flood control first: FloodError embeds *tele.Error, so this check must
	// precede the generic API error checks. Telebot has returned the flood
	// error both by value and by pointer across versions; accept either.
	var floodPtr *tele.FloodError
	if errors.As(err, &floodPtr) {
		return transport.RateLimited(err, time.Duration(floodPtr.RetryAfter)*time.Second)
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return transport.RateLimited(err, time.Duration(flood.RetryAfter)*time.Second)
	}

	for _, sentinel := range permanentAPIErrors {
		if errors.Is(err, sentinel) {
			return transport.Permanent(err)
		}
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		// Remaining 403s are access revocations in some shape (removed from
		// the chat, not a member, demoted admin).
		if apiErr.Code == 403 {
			return transport.Permanent(err)
		}
		// Other API replies (5xx hiccups, odd 400s) are worth a retry.
		return transport.Transient(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return transport.Timeout(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return transport.Timeout(err)
		}
		return transport.Transient(err)
	}

	return err
}
