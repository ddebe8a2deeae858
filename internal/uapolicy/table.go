// Package uapolicy implements the user-agent policy table consulted by the
// registrar worker: given a REGISTER request's User-Agent header, it answers
// the maximum permitted expiry and whether the response Contact header
// should echo the full binding list or only the sent Contact.
package uapolicy

import "regexp"

const (
	defaultMaxExpirySeconds     = 3600
	defaultContactListSupported = true
)

// Entry is a single user-agent policy rule.
type Entry struct {
	Pattern              *regexp.Regexp
	MaxExpirySeconds     uint32
	ContactListSupported bool
}

// Table is an ordered, first-match-wins set of user-agent policy entries.
// Built once at startup from configuration and never mutated afterward, so
// lookups need no locking.
type Table struct {
	entries []Entry
}

// NewTable builds a policy table from already-compiled entries, preserving
// the order given.
func NewTable(entries []Entry) *Table {
	return &Table{entries: entries}
}

// NewEmptyTable returns a table with no entries; every lookup falls through
// to the defaults.
func NewEmptyTable() *Table {
	return &Table{}
}

func (t *Table) match(userAgent string) *Entry {
	for i := range t.entries {
		if t.entries[i].Pattern.MatchString(userAgent) {
			return &t.entries[i]
		}
	}
	return nil
}

// MaxExpiryFor returns the first-match entry's max expiry, or the default
// (3600) when nothing matches.
func (t *Table) MaxExpiryFor(userAgent string) uint32 {
	if e := t.match(userAgent); e != nil {
		return e.MaxExpirySeconds
	}
	return defaultMaxExpirySeconds
}

// ContactListSupportedFor returns the first-match entry's contact-list flag,
// or the default (true) when nothing matches.
func (t *Table) ContactListSupportedFor(userAgent string) bool {
	if e := t.match(userAgent); e != nil {
		return e.ContactListSupported
	}
	return defaultContactListSupported
}

// Len reports the number of configured entries, mostly useful for logging
// at startup.
func (t *Table) Len() int {
	return len(t.entries)
}
