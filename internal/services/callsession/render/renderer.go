// Package render produces localized "caller is speaking" notification copy.
package render

import (
	"strings"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	defaultTitle         = "Walkie-talkie"
	defaultBody          = "Someone is speaking."
	defaultUnknownCaller = "Someone"
)

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// Input describes the session a notification is rendered for.
type Input struct {
	ChannelName string
	CallerID    string
	CallerName  string
	Muted       bool
}

// Render returns localized notification copy for one Active session.
func Render(loc Localizer, input Input) domain.Notification {
	caller := strings.TrimSpace(input.CallerName)
	if caller == "" {
		caller = localizeWithFallback(loc, "notification.call.unknown_caller", defaultUnknownCaller)
	}

	title := localize(loc, "notification.call.title", caller)
	bodyKey := "notification.call.body"
	if input.Muted {
		bodyKey = "notification.call.body_muted"
	}
	body := localize(loc, bodyKey)

	if title == "notification.call.title" || body == bodyKey {
		title = localizeWithFallback(loc, "notification.generic.title", defaultTitle)
		body = localizeWithFallback(loc, "notification.generic.body", defaultBody)
	}

	return domain.Notification{
		ChannelName: input.ChannelName,
		CallerID:    input.CallerID,
		CallerName:  input.CallerName,
		Title:       title,
		Body:        body,
	}
}

// ForSession renders the notification for session.
func ForSession(loc Localizer, session domain.Session) domain.Notification {
	return Render(loc, Input{
		ChannelName: session.ChannelName,
		CallerID:    session.CallerID,
		CallerName:  session.CallerName,
		Muted:       session.Muted,
	})
}

// NewPrinter returns a catalog printer for a locale tag, falling back to
// English for unknown or empty tags.
func NewPrinter(locale string) *message.Printer {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.English
	}
	matcher := language.NewMatcher([]language.Tag{language.English, language.MustParse("pt-BR")})
	matched, _, _ := matcher.Match(tag)
	return message.NewPrinter(matched)
}

func localize(loc Localizer, key message.Reference, args ...any) string {
	if loc == nil {
		if asString, ok := key.(string); ok {
			return asString
		}
		return ""
	}
	return loc.Sprintf(key, args...)
}

func localizeWithFallback(loc Localizer, key string, fallback string) string {
	value := strings.TrimSpace(localize(loc, key))
	if value == "" || value == key {
		return fallback
	}
	return value
}
