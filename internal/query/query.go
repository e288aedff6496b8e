// Package query builds bounded SQL queries for the smsvault message table.
// It translates optional, independent filter dimensions into a single WHERE
// clause with positional arguments, keeping SQL assembly out of the store
// and the HTTP layer.
package query

import "strings"

// Default pagination bounds applied when the caller does not specify them.
const (
	DefaultLimit  = 100
	DefaultOffset = 0
)

// Filter holds the optional constraints for a message query.
// Nil pointer fields mean "no constraint". All dimensions combine with AND;
// Search matches address OR body within itself.
type Filter struct {
	Type   *int   // exact match on message type (1 = received, 2 = sent)
	Unread *bool  // true selects read = 0, false selects read = 1
	Search string // case-insensitive substring match on address or body
}

// Page bounds a query. Limit must be positive and Offset non-negative;
// validation happens at the API layer before a Page is constructed.
type Page struct {
	Limit  int
	Offset int
}

// DefaultPage returns the documented pagination defaults.
func DefaultPage() Page {
	return Page{Limit: DefaultLimit, Offset: DefaultOffset}
}

// Where renders the filter as a WHERE clause body and its arguments.
// The returned SQL never starts with "WHERE"; an empty filter yields "1=1"
// so callers can always interpolate it after WHERE.
func (f Filter) Where() (string, []interface{}) {
	conds := []string{"1=1"}
	var args []interface{}

	if f.Type != nil {
		conds = append(conds, "type = ?")
		args = append(args, *f.Type)
	}

	if f.Unread != nil {
		// unread=true means the read flag is unset
		conds = append(conds, "read = ?")
		if *f.Unread {
			args = append(args, 0)
		} else {
			args = append(args, 1)
		}
	}

	if f.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		conds = append(conds, `(lower(address) LIKE ? ESCAPE '\' OR lower(body) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	return strings.Join(conds, " AND "), args
}

// OrderBy is the fixed sort order for message listings. The id tie-break
// keeps pagination deterministic when timestamps collide.
const OrderBy = "ORDER BY date DESC, id DESC"

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
