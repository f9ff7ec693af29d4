package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "notification.generic.title", defaultTitle)
	message.SetString(lang, "notification.generic.body", defaultBody)
	message.SetString(lang, "notification.call.unknown_caller", defaultUnknownCaller)
	message.SetString(lang, "notification.call.title", "%s is speaking")
	message.SetString(lang, "notification.call.body", "Tap to open the walkie-talkie.")
	message.SetString(lang, "notification.call.body_muted", "Tap to open the walkie-talkie. Your microphone is muted.")
}
