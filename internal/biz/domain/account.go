package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTriggerWords is the base trigger set every account starts with.
// Operator-added words extend it, they never replace it.
var DefaultTriggerWords = []string{"http", "whatsapp", "whatapp", "https", "://", "snapchat"}

// AccountKey identifies a monitored account (unique per operator)
type AccountKey struct {
	OperatorID  int64
	AccountName string
}

// String returns "operator/account" for logs
func (k AccountKey) String() string {
	return fmt.Sprintf("%d/%s", k.OperatorID, k.AccountName)
}

// Account represents a monitored upstream account
type Account struct {
	Key        AccountKey
	Token      string // Opaque bearer token passed to the upstream
	Triggers   TriggerSet
	ForwardAll bool // Forward every inbound message, bypassing the monetization filter
	UpdatedAt  time.Time
}

// Operator represents a person receiving notifications for their accounts
type Operator struct {
	ID       int64
	ChatID   string // Feishu chat that receives notifications
	Accounts map[string]*Account
}

// TriggerSet is the base trigger set plus the operator-added words.
// The zero value is a valid set containing only the base words.
type TriggerSet struct {
	added []string
}

// NewTriggerSet creates a trigger set with the given operator-added words
func NewTriggerSet(added ...string) TriggerSet {
	var ts TriggerSet
	ts.Add(added...)
	return ts
}

// Effective returns base words followed by operator-added words
func (t TriggerSet) Effective() []string {
	out := make([]string, 0, len(DefaultTriggerWords)+len(t.added))
	out = append(out, DefaultTriggerWords...)
	out = append(out, t.added...)
	return out
}

// Added returns a copy of the operator-added words
func (t TriggerSet) Added() []string {
	out := make([]string, len(t.added))
	copy(out, t.added)
	return out
}

// Add appends words, lowercased. Empty words and words already present are skipped.
func (t *TriggerSet) Add(words ...string) {
	for _, w := range words {
		w = NormalizeTrigger(w)
		if w == "" || t.Contains(w) {
			continue
		}
		t.added = append(t.added, w)
	}
}

// Remove drops words from the added subset. Base words cannot be removed.
func (t *TriggerSet) Remove(words ...string) {
	if len(t.added) == 0 {
		return
	}
	drop := make(map[string]bool, len(words))
	for _, w := range words {
		drop[NormalizeTrigger(w)] = true
	}
	kept := t.added[:0:0]
	for _, w := range t.added {
		if !drop[w] {
			kept = append(kept, w)
		}
	}
	t.added = kept
}

// Clear restores the set to exactly the base words
func (t *TriggerSet) Clear() {
	t.added = nil
}

// Contains reports whether the word is in the effective set
func (t TriggerSet) Contains(word string) bool {
	word = NormalizeTrigger(word)
	for _, w := range DefaultTriggerWords {
		if w == word {
			return true
		}
	}
	for _, w := range t.added {
		if w == word {
			return true
		}
	}
	return false
}

// NormalizeTrigger lowercases and trims a trigger word
func NormalizeTrigger(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// SplitTriggerWords splits operator input on commas, semicolons and whitespace
func SplitTriggerWords(input string) []string {
	return strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
}
