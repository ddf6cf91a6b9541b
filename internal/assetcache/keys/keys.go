// Package keys builds deterministic cache keys for fetched assets.
// A key is derivable from (collection, item, asset) alone so that
// invalidation events can address cached entries without knowing the
// asset href.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const maxSegmentLen = 96

func Key(collection, itemID, assetName string) string {
	raw := collection + "\x00" + itemID + "\x00" + assetName
	sum := xxhash.Sum64String(raw)
	return fmt.Sprintf("asset:%s:%s:%s:h=%016x",
		sanitize(collection), sanitize(itemID), sanitize(assetName), sum)
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case isASCIIWhitespace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	out := b.String()
	if len(out) > maxSegmentLen {
		out = out[:maxSegmentLen]
	}
	return out
}

func isASCIIWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
