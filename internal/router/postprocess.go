package router

import (
	"regexp"
	"strings"

	"iara/internal/textutil"
)

var (
	sentenceRx = regexp.MustCompile(`[^.!?]+[.!?]*`)
	linkRx     = regexp.MustCompile(`https?://\S+`)
	spacesRx   = regexp.MustCompile(`\s{2,}`)
)

// ClipSentences keeps at most max sentences of s. Generated replies are
// trimmed to the brand's short-message style; canned replies go out as-is.
func ClipSentences(s string, max int) string {
	s = strings.TrimSpace(s)
	if s == "" || max <= 0 {
		return s
	}
	parts := sentenceRx.FindAllString(s, -1)
	if len(parts) <= max {
		return s
	}
	out := strings.TrimSpace(strings.Join(parts[:max], ""))
	if !strings.HasSuffix(out, ".") && !strings.HasSuffix(out, "!") && !strings.HasSuffix(out, "?") {
		out += "."
	}
	return out
}

// WantsLink reports whether the user explicitly asked for a link. Only then
// may a generated reply carry URLs.
func WantsLink(userText string) bool {
	norm := " " + textutil.Normalize(userText) + " "
	for _, w := range []string{" link ", " site ", " checkout ", " url ", " pagina "} {
		if strings.Contains(norm, w) {
			return true
		}
	}
	return false
}

// ScrubLinks removes URLs from a generated reply unless the user asked for
// one. Collapses the whitespace the removal leaves behind.
func ScrubLinks(userText, reply string) string {
	if WantsLink(userText) {
		return reply
	}
	out := linkRx.ReplaceAllString(reply, "")
	out = spacesRx.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
