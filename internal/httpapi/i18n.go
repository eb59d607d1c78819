package httpapi

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// LangCookie stores the chosen interface language.
const LangCookie = "lang"

// ErrMissingTranslation reports a key absent from the catalog.
var ErrMissingTranslation = errors.New("httpapi: missing translation")

//go:embed translations.json
var translationsJSON []byte

// Translator resolves message keys for a locale.
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
	Languages() []string
}

// Catalog is a static, in-memory Translator keyed by language then message.
type Catalog struct {
	languages []string
	messages  map[string]map[string]string
}

var _ Translator = (*Catalog)(nil)

// DefaultCatalog returns the bundled en/ru messages.
func DefaultCatalog() (*Catalog, error) {
	return NewCatalog(translationsJSON)
}

// NewCatalog parses {"en": {"key": "message"}, ...}. Languages are listed in
// the order English first, then alphabetical.
func NewCatalog(raw []byte) (*Catalog, error) {
	var messages map[string]map[string]string
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("httpapi: parse translations: %w", err)
	}
	if len(messages) == 0 {
		return nil, errors.New("httpapi: translations are empty")
	}
	c := &Catalog{messages: messages}
	for lang := range messages {
		c.languages = append(c.languages, lang)
	}
	sortLanguages(c.languages)
	return c, nil
}

// Translate formats the message with args when any are given.
func (c *Catalog) Translate(locale, key string, args ...any) (string, error) {
	msg, ok := c.messages[locale][key]
	if !ok || strings.TrimSpace(msg) == "" {
		return "", fmt.Errorf("%w: %s/%s", ErrMissingTranslation, locale, key)
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return msg, nil
}

// Languages lists the supported language codes.
func (c *Catalog) Languages() []string {
	return append([]string(nil), c.languages...)
}

func (c *Catalog) supports(lang string) bool {
	_, ok := c.messages[lang]
	return ok
}

func sortLanguages(langs []string) {
	sort.Slice(langs, func(i, j int) bool {
		a, b := langs[i], langs[j]
		if a == "en" || b == "en" {
			return a == "en" && b != "en"
		}
		return a < b
	})
}

// resolveLang picks the cookie language, then the first Accept-Language
// entry with a supported prefix, then fallback.
func resolveLang(r *http.Request, c *Catalog, fallback string) string {
	if cookie, err := r.Cookie(LangCookie); err == nil && c.supports(cookie.Value) {
		return cookie.Value
	}
	accept := r.Header.Get("Accept-Language")
	if accept != "" {
		first := strings.ToLower(strings.TrimSpace(strings.Split(accept, ",")[0]))
		for _, lang := range c.languages {
			if strings.HasPrefix(first, lang) {
				return lang
			}
		}
	}
	return fallback
}

// translateFunc is exposed to page templates as translate(lang, key).
// Missing keys render as the key itself.
func translateFunc(t Translator) func(lang, key string) string {
	return func(lang, key string) string {
		key = strings.TrimSpace(key)
		if key == "" {
			return ""
		}
		msg, err := t.Translate(lang, key)
		if err != nil {
			return key
		}
		return msg
	}
}
