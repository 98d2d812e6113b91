package cite

import (
	"regexp"
	"strconv"
	"strings"
)

// MarkerPattern matches citation markers such as "[1]", "[1, 2]" or "[3]]" together
// with the whitespace before them. It is the one definition of a marker used for
// both stripping model output and recognising injected markers.
const MarkerPattern = `\s*\[\d+([,\s]*\d+)*\]+`

var (
	markerRe = regexp.MustCompile(MarkerPattern)
	singleRe = regexp.MustCompile(`\[(\d+)\]`)
)

// StripMarkers removes every citation marker from text.
// Removing a marker can join text into a new marker ("[1[2]]2]" -> "[12]"), so
// stripping repeats until nothing matches; StripMarkers(StripMarkers(s)) == StripMarkers(s).
func StripMarkers(text string) string {
	for {
		stripped := markerRe.ReplaceAllString(text, "")
		if stripped == text {
			return stripped
		}
		text = stripped
	}
}

// FormatMarkers renders 1-based citations as adjacent "[k]" markers
func FormatMarkers(citations []int) string {
	var b strings.Builder
	for _, k := range citations {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(k))
		b.WriteByte(']')
	}
	return b.String()
}

// ReplaceMarkers rewrites every single "[k]" marker in text with repl(k)
func ReplaceMarkers(text string, repl func(k int) string) string {
	return singleRe.ReplaceAllStringFunc(text, func(m string) string {
		k, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil {
			return m
		}
		return repl(k)
	})
}

// ParseMarkers returns the 1-based citation numbers of every "[k]" marker in text, in order
func ParseMarkers(text string) []int {
	var out []int
	for _, m := range singleRe.FindAllStringSubmatch(text, -1) {
		if k, err := strconv.Atoi(m[1]); err == nil {
			out = append(out, k)
		}
	}
	return out
}
