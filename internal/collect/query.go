package collect

import (
	"sort"
	"strings"

	"github.com/TobiSchelling/TickerPulse/internal/config"
)

var corporateSuffixes = map[string]bool{
	"inc": true, "corp": true, "corporation": true, "co": true, "ltd": true,
	"s.a": true, "sa": true, "s.a.c.i": true, "plc": true, "ag": true, "nv": true,
}

// Aliases returns the names a ticker is searched under: symbol variants
// (BRK.B, BRKB, BRK), each configured alias, and each alias with trailing
// corporate suffixes removed. The result is sorted and free of duplicates.
func Aliases(t config.Ticker) []string {
	symbol := strings.ToUpper(strings.TrimSpace(t.Symbol))
	set := make(map[string]bool)
	set[symbol] = true
	set[strings.ReplaceAll(symbol, ".", "")] = true
	set[strings.SplitN(symbol, ".", 2)[0]] = true

	for _, name := range t.Aliases {
		name = strings.Join(strings.Fields(name), " ")
		if name == "" {
			continue
		}
		set[name] = true
		if base := stripSuffixes(name); base != "" {
			set[base] = true
		}
	}
	delete(set, "")

	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// BuildQuery joins a ticker's aliases into a NewsAPI query. Multi-word
// aliases are quoted for exact phrase search:
//
//	NVDA + [NVIDIA Corporation] -> NVDA OR NVIDIA OR "NVIDIA Corporation"
func BuildQuery(t config.Ticker) string {
	var parts []string
	for _, a := range Aliases(t) {
		if strings.Contains(a, " ") {
			parts = append(parts, `"`+a+`"`)
		} else {
			parts = append(parts, a)
		}
	}
	if len(parts) == 0 {
		return strings.ToUpper(t.Symbol)
	}
	return strings.Join(parts, " OR ")
}

// stripSuffixes drops anything after a comma and trailing corporate
// suffixes: "MercadoLibre, Inc." -> "MercadoLibre".
func stripSuffixes(name string) string {
	name, _, _ = strings.Cut(name, ",")
	tokens := strings.Fields(name)
	for len(tokens) > 0 {
		last := strings.Trim(strings.ToLower(tokens[len(tokens)-1]), ".")
		if !corporateSuffixes[last] {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}
