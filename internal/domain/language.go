package domain

import (
	"strings"

	"golang.org/x/text/language"
)

// Language is a UI language code from the closed storefront roster.
type Language string

// CanonicalLanguage is the single source language editors author content in.
const CanonicalLanguage Language = "ja"

const (
	LangEnglish            Language = "en"
	LangChineseSimplified  Language = "zh"
	LangChineseTraditional Language = "zh-TW"
	LangKorean             Language = "ko"
	LangFrench             Language = "fr"
	LangSpanish            Language = "es"
	LangGerman             Language = "de"
	LangPortuguese         Language = "pt"
	LangItalian            Language = "it"
	LangRussian            Language = "ru"
	LangThai               Language = "th"
	LangVietnamese         Language = "vi"
	LangIndonesian         Language = "id"
	LangHindi              Language = "hi"
	LangArabic             Language = "ar"
)

// targetLanguages is ordered; fan-out results follow this order.
var targetLanguages = []Language{
	LangEnglish,
	LangChineseSimplified,
	LangChineseTraditional,
	LangKorean,
	LangFrench,
	LangSpanish,
	LangGerman,
	LangPortuguese,
	LangItalian,
	LangRussian,
	LangThai,
	LangVietnamese,
	LangIndonesian,
	LangHindi,
	LangArabic,
}

var (
	supportedLanguages = append([]Language{CanonicalLanguage}, targetLanguages...)
	languageIndex      = buildLanguageIndex(supportedLanguages)
	languageMatcher    = buildLanguageMatcher(supportedLanguages)
)

// TargetLanguages returns the translation roster (every supported language except the
// canonical one).
func TargetLanguages() []Language {
	out := make([]Language, len(targetLanguages))
	copy(out, targetLanguages)
	return out
}

// SupportedLanguages returns the canonical language followed by the translation roster.
func SupportedLanguages() []Language {
	out := make([]Language, len(supportedLanguages))
	copy(out, supportedLanguages)
	return out
}

// IsTargetLanguage reports whether lang may appear as a translation key.
func IsTargetLanguage(lang Language) bool {
	if lang == CanonicalLanguage {
		return false
	}
	_, ok := languageIndex[strings.ToLower(string(lang))]
	return ok
}

// ParseLanguage returns the roster entry that exactly matches value (case-insensitive,
// underscores accepted).
func ParseLanguage(value string) (Language, bool) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(value), "_", "-"))
	if key == "" {
		return "", false
	}
	lang, ok := languageIndex[key]
	return lang, ok
}

// MatchLanguage maps arbitrary BCP 47 input (a single tag or an Accept-Language header)
// onto the roster, defaulting to the canonical language.
func MatchLanguage(raw string) Language {
	if lang, ok := ParseLanguage(raw); ok {
		return lang
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CanonicalLanguage
	}
	tags, _, err := language.ParseAcceptLanguage(strings.ReplaceAll(raw, "_", "-"))
	if err != nil || len(tags) == 0 {
		return CanonicalLanguage
	}
	_, index, confidence := languageMatcher.Match(tags...)
	if confidence == language.No || index < 0 || index >= len(supportedLanguages) {
		return CanonicalLanguage
	}
	return supportedLanguages[index]
}

func buildLanguageIndex(langs []Language) map[string]Language {
	index := make(map[string]Language, len(langs))
	for _, lang := range langs {
		index[strings.ToLower(string(lang))] = lang
	}
	return index
}

func buildLanguageMatcher(langs []Language) language.Matcher {
	tags := make([]language.Tag, 0, len(langs))
	for _, lang := range langs {
		tags = append(tags, language.MustParse(string(lang)))
	}
	return language.NewMatcher(tags)
}
