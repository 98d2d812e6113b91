// Package excerpt builds highlighted evidence windows around cited fragments.
package excerpt

import "strings"

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// Escape replaces the five HTML-significant characters with entities.
// Every span of user content is passed through Escape exactly once.
func Escape(s string) string {
	return escaper.Replace(s)
}
