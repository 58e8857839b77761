package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/polisai/realm-finder/pkg/config"
)

// Executor produces the agent's answer to a user message.
type Executor interface {
	Execute(ctx context.Context, msg Message) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, msg Message) (string, error)

func (f ExecutorFunc) Execute(ctx context.Context, msg Message) (string, error) {
	return f(ctx, msg)
}

// RealmExecutor answers realm status questions from a fixed realm table.
type RealmExecutor struct {
	realms []config.RealmConfig
}

// NewRealmExecutor creates an executor over realms. Realms are reported in
// name order.
func NewRealmExecutor(realms []config.RealmConfig) *RealmExecutor {
	sorted := append([]config.RealmConfig(nil), realms...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &RealmExecutor{realms: sorted}
}

// Execute reports the status of the realms named in the message, or of every
// realm when none is named.
func (e *RealmExecutor) Execute(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	query := strings.ToLower(msg.Text())
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyMessage
	}

	if len(e.realms) == 0 {
		return "No realms are currently known.", nil
	}

	var named []config.RealmConfig
	for _, realm := range e.realms {
		if containsWord(query, strings.ToLower(realm.Name)) {
			named = append(named, realm)
		}
	}

	if len(named) == 1 {
		return fmt.Sprintf("The %s realm is %s.", named[0].Name, statusOf(named[0])), nil
	}
	if len(named) == 0 {
		named = e.realms
	}

	lines := make([]string, 0, len(named)+1)
	lines = append(lines, "Realm status:")
	for _, realm := range named {
		lines = append(lines, fmt.Sprintf("- %s: %s", realm.Name, statusOf(realm)))
	}
	return strings.Join(lines, "\n"), nil
}

func statusOf(realm config.RealmConfig) string {
	if realm.Status == "" {
		return "unknown"
	}
	return realm.Status
}

// containsWord reports whether word occurs in s with no letter or digit
// directly before or after it, so "oci-1" does not match "oci-10".
func containsWord(s, word string) bool {
	for start := 0; ; {
		i := strings.Index(s[start:], word)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(word)
		if (i == 0 || !isWordByte(s[i-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}
