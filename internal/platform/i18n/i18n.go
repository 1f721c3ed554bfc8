// Package i18n defines the locales supported by the application and helpers
// to negotiate a display language.
package i18n

import (
	"golang.org/x/text/language"
)

var supportedTags = []language.Tag{
	language.BrazilianPortuguese,
	language.AmericanEnglish,
}

var tagMatcher = language.NewMatcher(supportedTags)
var supportedTagSet = make(map[string]language.Tag, len(supportedTags))

func init() {
	for _, tag := range supportedTags {
		supportedTagSet[tag.String()] = tag
	}
}

// SupportedTags returns the list of supported language tags.
func SupportedTags() []language.Tag {
	tags := make([]language.Tag, len(supportedTags))
	copy(tags, supportedTags)
	return tags
}

// DefaultTag returns the default language tag.
func DefaultTag() language.Tag {
	return language.BrazilianPortuguese
}

// ParseTag parses value into a supported language tag. The bool reports
// whether the value named a supported locale.
func ParseTag(value string) (language.Tag, bool) {
	parsed, err := language.Parse(value)
	if err != nil {
		return language.Tag{}, false
	}
	if tag, ok := supportedTagSet[parsed.String()]; ok {
		return tag, true
	}
	return language.Tag{}, false
}

// MatchTags returns the best supported tag for the requested preference list.
func MatchTags(tags []language.Tag) language.Tag {
	if len(tags) == 0 {
		return DefaultTag()
	}
	_, index, confidence := tagMatcher.Match(tags...)
	if confidence == language.No {
		return DefaultTag()
	}
	return supportedTags[index]
}
