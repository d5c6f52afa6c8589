package task

import "fmt"

// LegacyKind is reported by placeholder tasks whose original kind is unknown.
const LegacyKind = "legacy"

// LegacyTask stands in for a stored task that could not be decoded. It keeps
// the raw payload untouched and fails on its first run so the lane moves on.
type LegacyTask struct {
	Base

	Raw          []byte
	OriginalKind string
	Reason       string
}

func (l *LegacyTask) Kind() string {
	if l.OriginalKind != "" {
		return l.OriginalKind
	}
	return LegacyKind
}

func (l *LegacyTask) Description() string {
	return fmt.Sprintf("Unreadable %s task", l.Kind())
}

func (l *LegacyTask) RetryLimit() int { return 0 }

func (l *LegacyTask) Run(*Context) (bool, error) {
	return false, &DecodeError{Kind: l.OriginalKind, Reason: l.Reason}
}
