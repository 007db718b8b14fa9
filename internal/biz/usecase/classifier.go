package usecase

import (
	"regexp"
	"strings"
)

// linkPatterns are matched as plain substrings of the lowercased text
var linkPatterns = []string{
	// Protocol markers
	"http://", "https://", "www.", "://",
	// Common TLDs
	".com", ".net", ".org", ".io", ".me", ".ly", ".link", ".xyz", ".co", ".ru",
	// Platform domains
	"t.me/", "telegram.me", "wa.me/", "instagram.com", "snapchat.com",
	"linktr.ee", "bit.ly", "fansly", "discord.gg",
}

// paymentPatterns are matched as whole words; spaces match any whitespace run
var paymentPatterns = []string{
	"paypal", "venmo", "zelle", "cash app", "apple pay", "google pay", "skrill",
	"revolut", "western union", "moneygram", "bitcoin", "btc", "usdt", "crypto",
	"wire transfer", "bank transfer", "gift card", "amazon gift card", "card number", "iban",
}

type paymentMatcher struct {
	pattern string
	re      *regexp.Regexp
}

var paymentMatchers = compilePaymentMatchers(paymentPatterns)

func compilePaymentMatchers(patterns []string) []paymentMatcher {
	matchers := make([]paymentMatcher, 0, len(patterns))
	for _, p := range patterns {
		words := strings.Fields(p)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		expr := `(?i)\b` + strings.Join(words, `\s+`) + `\b`
		matchers = append(matchers, paymentMatcher{pattern: p, re: regexp.MustCompile(expr)})
	}
	return matchers
}

// Classification lists every pattern that fired for a message
type Classification struct {
	Links    []string
	Payments []string
	Triggers []string
}

// Empty reports whether nothing matched
func (c Classification) Empty() bool {
	return len(c.Links) == 0 && len(c.Payments) == 0 && len(c.Triggers) == 0
}

// All returns every matched pattern, links first
func (c Classification) All() []string {
	out := make([]string, 0, len(c.Links)+len(c.Payments)+len(c.Triggers))
	out = append(out, c.Links...)
	out = append(out, c.Payments...)
	out = append(out, c.Triggers...)
	return out
}

// Classify detects links, payment systems and trigger words in text.
// triggers is the account's effective trigger set.
func Classify(text string, triggers []string) Classification {
	lower := strings.ToLower(text)
	var c Classification

	for _, p := range linkPatterns {
		if strings.Contains(lower, p) {
			c.Links = appendUnique(c.Links, p)
		}
	}

	for _, m := range paymentMatchers {
		if m.re.MatchString(text) {
			c.Payments = appendUnique(c.Payments, m.pattern)
		}
	}

	for _, w := range triggers {
		w = strings.ToLower(w)
		if w == "" {
			continue
		}
		if strings.Contains(lower, w) {
			c.Triggers = appendUnique(c.Triggers, w)
		}
	}

	return c
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
