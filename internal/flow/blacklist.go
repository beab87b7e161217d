package flow

import (
	"log/slog"
	"sort"

	"github.com/karuna-es/karunabot/internal/models"
)

// Add places a sender on the blacklist. Adding an already blacklisted
// sender is a no-op.
func (bs *BlacklistStore) Add(sender string) error {
	if sender == "" {
		return models.ErrEmptyRecipient
	}
	err := bs.state.mutate(func(cfg *models.BotConfig) error {
		for _, s := range cfg.Blacklist {
			if s == sender {
				return nil
			}
		}
		cfg.Blacklist = append(cfg.Blacklist, sender)
		return nil
	})
	if err != nil {
		slog.Warn("BlacklistStore.Add failed", "error", err, "sender", sender)
		return err
	}
	slog.Info("BlacklistStore.Add: sender blacklisted", "sender", sender)
	return nil
}

// Remove takes a sender off the blacklist. Removing an absent sender is a
// no-op.
func (bs *BlacklistStore) Remove(sender string) error {
	err := bs.state.mutate(func(cfg *models.BotConfig) error {
		for i, s := range cfg.Blacklist {
			if s == sender {
				cfg.Blacklist = append(cfg.Blacklist[:i], cfg.Blacklist[i+1:]...)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		slog.Warn("BlacklistStore.Remove failed", "error", err, "sender", sender)
		return err
	}
	slog.Info("BlacklistStore.Remove: sender removed", "sender", sender)
	return nil
}

// Contains reports whether a sender is blacklisted.
func (bs *BlacklistStore) Contains(sender string) bool {
	cfg := bs.state.snapshot()
	for _, s := range cfg.Blacklist {
		if s == sender {
			return true
		}
	}
	return false
}

// List returns the blacklisted senders in sorted order.
func (bs *BlacklistStore) List() []string {
	cfg := bs.state.snapshot()
	out := make([]string, len(cfg.Blacklist))
	copy(out, cfg.Blacklist)
	sort.Strings(out)
	return out
}
