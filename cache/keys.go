package cache

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-content-placeholders/content"
)

const (
	// ItemKeyPrefix prefixes every rendered item key.
	ItemKeyPrefix = "contentitem"
	// PlaceholderKeyPrefix prefixes every merged placeholder key.
	PlaceholderKeyPrefix = "placeholder"
	// KeySeparator joins key components.
	KeySeparator = "."

	// UnsupportedLanguage buckets request languages a plugin does not cache
	// separately.
	UnsupportedLanguage = "unsupported"
	// NoLanguage is written when a parent has no language.
	NoLanguage = "None"

	// DebugStatSuffix is appended to an item key to store the template
	// modification stamp in debug mode.
	DebugStatSuffix = ".debug-stat"
)

// ItemKey returns the key of a rendered item under a placeholder slot.
// ok is false for unsaved items, which are never cached.
//
//	contentitem.@<slot>.<type>.<id>
func ItemKey(slot, typeName string, itemID int64) (key string, ok bool) {
	if itemID == 0 {
		return "", false
	}
	var b strings.Builder
	b.Grow(len(ItemKeyPrefix) + len(slot) + len(typeName) + 24)
	b.WriteString(ItemKeyPrefix)
	b.WriteString(KeySeparator)
	b.WriteByte('@')
	b.WriteString(slot)
	b.WriteString(KeySeparator)
	b.WriteString(typeName)
	b.WriteString(KeySeparator)
	b.WriteString(strconv.FormatInt(itemID, 10))
	return b.String(), true
}

// PlaceholderKey returns the key of the merged output of a placeholder.
//
//	placeholder.<parent-type>.<parent-id>.<slot>.<language>
func PlaceholderKey(parent content.ParentRef, slot, language string) string {
	if language == "" {
		language = NoLanguage
	}
	return strings.Join([]string{
		PlaceholderKeyPrefix,
		strconv.FormatInt(parent.TypeID, 10),
		strconv.FormatInt(parent.ID, 10),
		slot,
		language,
	}, KeySeparator)
}

// PlaceholderKeyFor is PlaceholderKey for a loaded placeholder.
func PlaceholderKeyFor(p *content.Placeholder, language string) string {
	return PlaceholderKey(p.Parent, p.Slot, language)
}

// Scope is the cache scope of a plugin, folded into item keys.
type Scope struct {
	PerSite     bool
	PerLanguage bool
	// IgnoreItemLanguage does not change the stored key but widens the
	// invalidation key set to every language.
	IgnoreItemLanguage bool
	// Languages are the codes cached separately.
	Languages []string
}

// Language maps a request language to the bucket stored for it.
func (s Scope) Language(language string) string {
	for _, code := range s.Languages {
		if code == language {
			return language
		}
	}
	return UnsupportedLanguage
}

// OutputKey derives the key an item output is read from and written to.
//
//	<base>[-s<site>][.<language>]
func OutputKey(base string, scope Scope, siteID int64, language string) string {
	key := base
	if scope.PerSite {
		key = siteKey(key, siteID)
	}
	if scope.PerLanguage {
		key = key + KeySeparator + scope.Language(language)
	}
	return key
}

// OutputKeys enumerates every key an item output may have been stored
// under, for invalidation. Per-site plugins expand over all sites (the
// current site included), and per-language or language-agnostic plugins over
// all languages plus the unsupported and no-language buckets. Language-agnostic
// plugins keep the un-suffixed keys in the set. In both language cases the
// merged placeholder keys for every language are included when placeholder is
// not nil.
func OutputKeys(base string, scope Scope, siteIDs []int64, currentSite int64, placeholder *content.Placeholder) []string {
	keys := []string{base}

	if scope.PerSite {
		sites := append([]int64(nil), siteIDs...)
		if !containsSite(sites, currentSite) {
			sites = append(sites, currentSite)
		}
		keys = keys[:0]
		for _, site := range sites {
			keys = append(keys, siteKey(base, site))
		}
	}

	if scope.PerLanguage || scope.IgnoreItemLanguage {
		languages := make([]string, 0, len(scope.Languages)+2)
		languages = append(languages, scope.Languages...)
		languages = append(languages, UnsupportedLanguage, NoLanguage)

		total := make([]string, 0, (len(languages)+1)*(len(keys)+1))
		if !scope.PerLanguage {
			// Language-agnostic output is still stored under the bare key.
			total = append(total, keys...)
		}
		if placeholder != nil {
			for _, lang := range languages {
				total = append(total, PlaceholderKeyFor(placeholder, lang))
			}
		}
		for _, lang := range languages {
			for _, key := range keys {
				total = append(total, key+KeySeparator+lang)
			}
		}
		keys = total
	}

	return keys
}

// DebugStatKey returns the key storing the template stamp of an item key.
func DebugStatKey(key string) string {
	return key + DebugStatSuffix
}

func siteKey(key string, siteID int64) string {
	return key + "-s" + strconv.FormatInt(siteID, 10)
}

func containsSite(sites []int64, site int64) bool {
	for _, s := range sites {
		if s == site {
			return true
		}
	}
	return false
}
