package model

import (
	"strings"
	"time"
)

// Language is one selectable bot language.
type Language struct {
	Code      string
	Name      string
	Flag      string
	Active    bool
	Default   bool
	SortOrder int
}

// BotText is one admin-editable localized string, keyed by (key, language).
type BotText struct {
	Key         string
	Language    string
	Text        string
	Description string
	UpdatedAt   time.Time
}

// TextSnapshot is an immutable view of all bot texts and languages taken at
// load time. Consumers hold a pointer to it; refreshing means building a new
// snapshot and swapping the pointer, never mutating a live one.
type TextSnapshot struct {
	texts       map[string]map[string]string // key -> language -> text
	languages   []Language
	defaultLang string
	loadedAt    time.Time
}

func NewTextSnapshot(texts []BotText, languages []Language) *TextSnapshot {
	byKey := make(map[string]map[string]string, len(texts))
	for _, t := range texts {
		m := byKey[t.Key]
		if m == nil {
			m = make(map[string]string)
			byKey[t.Key] = m
		}
		m[t.Language] = t.Text
	}
	def := DefaultLanguage
	active := make([]Language, 0, len(languages))
	for _, l := range languages {
		if !l.Active {
			continue
		}
		if l.Default {
			def = l.Code
		}
		active = append(active, l)
	}
	return &TextSnapshot{
		texts:       byKey,
		languages:   active,
		defaultLang: def,
		loadedAt:    time.Now(),
	}
}

// Text resolves key in the given language, falling back to the default
// language and finally to the key itself so callers never render "".
func (s *TextSnapshot) Text(key, language string) string {
	if m, ok := s.texts[key]; ok {
		if t := m[language]; t != "" {
			return t
		}
		if t := m[s.defaultLang]; t != "" {
			return t
		}
	}
	return key
}

// TextWithName expands the {name} placeholder used by greeting texts.
func (s *TextSnapshot) TextWithName(key, language, name string) string {
	return strings.ReplaceAll(s.Text(key, language), "{name}", name)
}

func (s *TextSnapshot) Languages() []Language   { return s.languages }
func (s *TextSnapshot) DefaultLanguage() string { return s.defaultLang }
func (s *TextSnapshot) LoadedAt() time.Time     { return s.loadedAt }
