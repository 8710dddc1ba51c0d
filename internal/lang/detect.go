// Package lang detects the language of a question and renders user-facing
// messages in Russian, English or Kazakh.
package lang

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Language is a BCP 47 base code.
type Language string

const (
	Russian Language = "ru"
	English Language = "en"
	Kazakh  Language = "kk"
)

// Default is used for empty or letterless input.
const Default = English

// kazakhLetters do not occur in Russian.
const kazakhLetters = "әғқңөұүһі"

var kazakhWords = []string{
	"қанша", "неше", "қалай", "қайда", "қашан", "көрсет", "тарату", "бөлу",
	"бойынша", "үшін", "жылы", "күнде", "қала",
}

// Detect guesses the language from its letters: Kazakh-only letters or common
// Kazakh words win, then a Latin majority means English, then a Cyrillic
// share above 30% means Russian.
func Detect(text string) Language {
	if strings.TrimSpace(text) == "" {
		return Default
	}
	low := strings.ToLower(text)

	var cyr, lat int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cyrillic, r) && unicode.IsLetter(r):
			cyr++
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			lat++
		}
	}
	if cyr+lat == 0 {
		return Default
	}
	if strings.ContainsAny(low, kazakhLetters) {
		return Kazakh
	}
	for _, w := range kazakhWords {
		if strings.Contains(low, w) {
			return Kazakh
		}
	}
	if lat > cyr {
		return English
	}
	if float64(cyr)/float64(cyr+lat) > 0.3 {
		return Russian
	}
	return English
}

// Parse maps any tag string ("ru-RU", "kk", "EN") to a supported Language.
func Parse(s string) Language {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return Default
	}
	base, _ := tag.Base()
	switch Language(base.String()) {
	case Russian:
		return Russian
	case Kazakh:
		return Kazakh
	case English:
		return English
	}
	return Default
}

// Tag returns the x/text tag.
func (l Language) Tag() language.Tag {
	switch l {
	case Russian:
		return language.Russian
	case Kazakh:
		return language.Kazakh
	default:
		return language.English
	}
}

// Name is the English language name used inside prompts.
func (l Language) Name() string {
	switch l {
	case Russian:
		return "Russian"
	case Kazakh:
		return "Kazakh"
	default:
		return "English"
	}
}

// ResponseInstruction tells a model which language to answer in.
func (l Language) ResponseInstruction() string {
	switch l {
	case Russian:
		return "Отвечайте на русском языке. Все тексты должны быть на русском."
	case Kazakh:
		return "Қазақ тілінде жауап беріңіз. Барлық мәтіндер қазақ тілінде болуы керек."
	default:
		return "Respond in English. All texts should be in English."
	}
}
