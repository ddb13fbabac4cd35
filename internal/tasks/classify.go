package tasks

import "strings"

// Category is the user-facing class of an upstream failure.
type Category int

const (
	CategoryInvalid Category = iota
	CategoryRateLimited
	CategoryPrivate
	CategoryUnavailable
	CategoryGeoRestricted
)

// User-facing messages, one per [Category].
const (
	MsgRateLimited   = "The platform is temporarily blocking requests. Please try again later."
	MsgPrivate       = "This content is private and cannot be accessed."
	MsgUnavailable   = "This content is unavailable or has been deleted."
	MsgGeoRestricted = "This content is not available in the server's region."
	MsgInvalid       = "Invalid or unsupported link. Please check the URL and try again."
)

// rules are evaluated in order; the first match wins.
var rules = []struct {
	category Category
	needles  []string
}{
	{CategoryRateLimited, []string{"sign in", "confirm you", "cookies", "rate-limit", "too many requests"}},
	{CategoryPrivate, []string{"private"}},
	{CategoryUnavailable, []string{"unavailable", "deleted"}},
	{CategoryGeoRestricted, []string{"geo-restricted", "not available in your country"}},
}

// Categorize matches raw extractor text, case-insensitively, against the rule table.
func Categorize(raw string) Category {
	lower := strings.ToLower(raw)
	for _, rule := range rules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.category
			}
		}
	}
	return CategoryInvalid
}

// Message returns the user-facing text for c.
func (c Category) Message() string {
	switch c {
	case CategoryRateLimited:
		return MsgRateLimited
	case CategoryPrivate:
		return MsgPrivate
	case CategoryUnavailable:
		return MsgUnavailable
	case CategoryGeoRestricted:
		return MsgGeoRestricted
	default:
		return MsgInvalid
	}
}

func (c Category) String() string {
	switch c {
	case CategoryRateLimited:
		return "rate_limited"
	case CategoryPrivate:
		return "private"
	case CategoryUnavailable:
		return "unavailable"
	case CategoryGeoRestricted:
		return "geo_restricted"
	default:
		return "invalid"
	}
}

// Classify maps raw extractor error text to a message safe to show users.
func Classify(raw string) string {
	return Categorize(raw).Message()
}
