package flow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/karuna-es/karunabot/internal/models"
)

// RenderMenu formats a menu flow's options as the text presented to a
// sender on first contact.
func RenderMenu(cfg *models.MenuConfig) string {
	var b strings.Builder
	b.WriteString(cfg.WelcomeMessage)
	b.WriteString("\n\n")
	for i, opt := range cfg.Options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, opt.Label)
	}
	b.WriteString("\n")
	b.WriteString(cfg.FooterMessage)
	return b.String()
}

// SelectOption interprets text as a 1-based menu choice. It returns the
// configured response and true on a valid selection; anything else returns
// false so the message falls through to the conversational path.
func SelectOption(cfg *models.MenuConfig, text string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > len(cfg.Options) {
		return "", false
	}
	return cfg.Options[n-1].Response, true
}
