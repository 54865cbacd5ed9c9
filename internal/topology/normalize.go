package topology

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/passbi/passbi_topology/internal/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// German letters are spelled out before decomposition, otherwise NFKD
	// would reduce them to their bare vowel.
	umlauts = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

	nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)
)

// Normalize turns arbitrary display text into a lowercase ASCII slug.
// Returns fallback unchanged when nothing usable is left.
func Normalize(text, fallback string) string {
	value := strings.ToLower(strings.TrimSpace(text))
	value = umlauts.Replace(value)
	value = foldASCII(value)
	value = strings.Trim(nonSlugRun.ReplaceAllString(value, "_"), "_")

	if value == "" {
		return fallback
	}
	return value
}

// foldASCII applies compatibility decomposition and drops every non-ASCII rune
func foldASCII(s string) string {
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return ""
	}
	return out
}

// AssignIdentifiers maps every source key to a unique slug derived from its name.
//
// Entries are ordered by (slug, key) before suffixing, so the result does not
// depend on input order: the first key claiming a slug gets it bare, the
// following ones get "_2", "_3", ... A suffixed slug that happens to equal
// another entry's bare slug is not detected.
func AssignIdentifiers(pairs []models.KeyedName, fallbackPrefix string) map[string]string {
	type entry struct {
		key  string
		base string
	}

	entries := make([]entry, 0, len(pairs))
	for _, p := range pairs {
		keyFallback := Normalize(p.Key, fallbackPrefix)
		base := Normalize(p.Name, fallbackPrefix+"_"+keyFallback)
		entries = append(entries, entry{key: p.Key, base: base})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].base != entries[j].base {
			return entries[i].base < entries[j].base
		}
		return entries[i].key < entries[j].key
	})

	ids := make(map[string]string, len(entries))
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.base]++
		if n := counts[e.base]; n > 1 {
			ids[e.key] = e.base + "_" + strconv.Itoa(n)
		} else {
			ids[e.key] = e.base
		}
	}

	return ids
}
