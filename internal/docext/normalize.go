package docext

import "strings"

// Word substitutes typographic characters as the author types: curly
// quotes, long dashes, non-breaking spaces. Identity lines and field
// labels must survive that, so every text run is normalized to the
// plain ASCII the rest of the pipeline parses.
var runeReplacements = map[rune]rune{
	' ': ' ',  // non-breaking space
	' ': ' ',  // figure space
	' ': ' ',  // narrow non-breaking space
	'‘': '\'', // left single quote
	'’': '\'', // right single quote
	'“': '"',  // left double quote
	'”': '"',  // right double quote
	'‐': '-',  // hyphen
	'‑': '-',  // non-breaking hyphen
	'–': '-',  // en dash
	'—': '-',  // em dash
	'−': '-',  // minus sign
}

// Invisible characters Word and copy-paste leave behind. Dropped
// entirely rather than replaced.
var runeDropped = map[rune]struct{}{
	'­': {}, // soft hyphen
	'​': {}, // zero-width space
	'‌': {}, // zero-width non-joiner
	'‍': {}, // zero-width joiner
	'\uFEFF': {}, // byte order mark
}

// normalizeRun maps a single text run to its plain-text form. It is
// applied per run, before the run reaches the paragraph buffer, so
// character offsets recorded for links refer to normalized text.
func normalizeRun(s string) string {
	// Fast path: most runs are plain ASCII already.
	clean := true
	for _, r := range s {
		if r >= 0x80 {
			if _, ok := runeReplacements[r]; ok {
				clean = false
				break
			}
			if _, ok := runeDropped[r]; ok {
				clean = false
				break
			}
		}
	}
	if clean {
		return s
	}

	return strings.Map(func(r rune) rune {
		if repl, ok := runeReplacements[r]; ok {
			return repl
		}
		if _, ok := runeDropped[r]; ok {
			return -1
		}
		return r
	}, s)
}
