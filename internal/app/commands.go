package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"forwardbot/internal/transport"
	"forwardbot/pkg/logx"
)

// maxChannelLines bounds /channels output so a huge destination list cannot
// produce an oversized message.
const maxChannelLines = 50

// HandleCommand serves the operator commands pulled from the update stream.
// Only configured owners get a response; everyone else is silently ignored.
func (a *App) HandleCommand(ctx context.Context, cmd transport.Command) {
	if !a.isOwner(cmd.FromID) {
		a.log.Debug("command from non-owner ignored",
			logx.Int64("from", cmd.FromID), logx.String("cmd", cmd.Name))
		return
	}

	var text string
	switch cmd.Name {
	case "status":
		text = a.statusText()
	case "stats":
		text = a.statsText(ctx)
	case "channels":
		text = a.channelsText()
	default:
		text = "Commands: /status, /stats, /channels"
	}

	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := a.adapter.SendText(sctx, transport.ChatTarget{ChatID: cmd.ChatID}, text); err != nil {
		a.log.Warn("command reply failed",
			logx.String("cmd", cmd.Name), logx.Int64("chat_id", cmd.ChatID), logx.Err(err))
	}
}

func (a *App) isOwner(userID int64) bool {
	a.ownersMu.RLock()
	defer a.ownersMu.RUnlock()
	for _, id := range a.owners {
		if id == userID {
			return true
		}
	}
	return false
}

func (a *App) setOwners(ids []int64) {
	a.ownersMu.Lock()
	a.owners = append([]int64(nil), ids...)
	a.ownersMu.Unlock()
}

func (a *App) statusText() string {
	st := a.in.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "Up %s. %d destination(s) configured.\n",
		time.Since(a.startedAt).Round(time.Second), len(a.in.Destinations()))
	if st.LastRun == nil {
		b.WriteString("No posts forwarded yet.")
		return b.String()
	}
	fmt.Fprintf(&b, "Last run %s ago: %d/%d delivered",
		time.Since(st.LastRunAt).Round(time.Second), st.LastRun.Succeeded, st.LastRun.Total)
	if st.LastRun.Failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", st.LastRun.Failed)
	}
	b.WriteString(".")
	return b.String()
}

func (a *App) statsText(ctx context.Context) string {
	st := a.in.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "Since start: %d run(s), %d forwarded, %d failed.",
		st.Runs, st.Forwarded, st.Failed)

	if a.store != nil {
		tot, err := a.store.TotalsSince(ctx, time.Now().Add(-24*time.Hour))
		if err != nil {
			a.log.Warn("stats totals query failed", logx.Err(err))
		} else {
			fmt.Fprintf(&b, "\nLast 24h: %d run(s), %d forwarded, %d failed.",
				tot.Runs, tot.Forwarded, tot.Failed)
		}
	}
	return b.String()
}

func (a *App) channelsText() string {
	cfg := a.cfgm.Get()
	if cfg == nil {
		return "No configuration loaded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Master: %d\nDestinations (%d):\n", cfg.Telegram.MasterChannel, len(cfg.Telegram.Destinations))
	for i, id := range cfg.Telegram.Destinations {
		if i == maxChannelLines {
			fmt.Fprintf(&b, "… and %d more", len(cfg.Telegram.Destinations)-maxChannelLines)
			break
		}
		fmt.Fprintf(&b, "  %d\n", id)
	}
	return strings.TrimRight(b.String(), "\n")
}
