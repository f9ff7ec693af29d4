package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.MustParse("pt-BR")

	message.SetString(lang, "notification.generic.title", "Walkie-talkie")
	message.SetString(lang, "notification.generic.body", "Alguém está falando.")
	message.SetString(lang, "notification.call.unknown_caller", "Alguém")
	message.SetString(lang, "notification.call.title", "%s está falando")
	message.SetString(lang, "notification.call.body", "Toque para abrir o walkie-talkie.")
	message.SetString(lang, "notification.call.body_muted", "Toque para abrir o walkie-talkie. Seu microfone está mudo.")
}
