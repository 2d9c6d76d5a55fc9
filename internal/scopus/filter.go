package scopus

import "strings"

// codeByKind maps a publication kind name (lower case) to the Scopus
// subtype code carried in the entry's subtype field.
var codeByKind = map[string]string{
	"article":           "ar",
	"abstract report":   "ab",
	"book":              "bk",
	"book chapter":      "ch",
	"business article":  "bz",
	"conference paper":  "cp",
	"conference review": "cr",
	"data paper":        "dp",
	"editorial":         "ed",
	"erratum":           "er",
	"letter":            "le",
	"note":              "no",
	"press release":     "pr",
	"retracted":         "tb",
	"review":            "re",
	"short survey":      "sh",
}

// Accepts reports whether entry is one of the accepted kinds. An empty
// kinds list accepts everything. A kind matches when its known subtype
// code equals the entry's code, or when the kind name appears in the
// entry's subtype description; both comparisons ignore case.
func Accepts(entry Entry, kinds []string) bool {
	if len(kinds) == 0 {
		return true
	}
	code := strings.ToLower(strings.TrimSpace(entry.Subtype))
	desc := strings.ToLower(entry.SubtypeDescription)
	for _, k := range kinds {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if c, ok := codeByKind[k]; ok && c == code {
			return true
		}
		if strings.Contains(desc, k) {
			return true
		}
	}
	return false
}

// ParseKinds turns a comma-separated kinds flag into a list. "*" and the
// empty string both mean every kind and yield nil.
func ParseKinds(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return nil
	}
	var kinds []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
