package normalize

import "strings"

// tesseractCodes maps ISO 639-1 codes and English language names to the
// traineddata names tesseract expects.
//
//nolint:gochecknoglobals // Static lookup table for language normalization
var tesseractCodes = map[string]string{
	"en": "eng", "english": "eng",
	"zh": "chi_sim", "chinese": "chi_sim", "zh-cn": "chi_sim", "zh-hans": "chi_sim",
	"zh-tw": "chi_tra", "zh-hk": "chi_tra", "zh-hant": "chi_tra",
	"ja": "jpn", "japanese": "jpn",
	"ko": "kor", "korean": "kor",
	"de": "deu", "german": "deu", "ger": "deu",
	"fr": "fra", "french": "fra", "fre": "fra",
	"es": "spa", "spanish": "spa",
	"it": "ita", "italian": "ita",
	"pt": "por", "portuguese": "por",
	"nl": "nld", "dutch": "nld", "dut": "nld",
	"ru": "rus", "russian": "rus",
	"uk": "ukr", "ukrainian": "ukr",
	"pl": "pol", "polish": "pol",
	"cs": "ces", "czech": "ces", "cze": "ces",
	"sv": "swe", "swedish": "swe",
	"no": "nor", "norwegian": "nor",
	"da": "dan", "danish": "dan",
	"fi": "fin", "finnish": "fin",
	"tr": "tur", "turkish": "tur",
	"el": "ell", "greek": "ell", "gre": "ell",
	"ar": "ara", "arabic": "ara",
	"he": "heb", "hebrew": "heb",
	"hi": "hin", "hindi": "hin",
	"th": "tha", "thai": "tha",
	"vi": "vie", "vietnamese": "vie",
	"id": "ind", "indonesian": "ind",
}

// OCRLanguages converts a language list such as "en,zh-CN" or "English+German"
// into tesseract's -l argument ("eng+chi_sim"). Values already in tesseract
// form pass through; unknown entries are dropped. Returns "eng" when nothing
// is recognized.
func OCRLanguages(raw string) string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '+' || r == ' ' || r == ';'
	})

	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		code := tesseractCode(p)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}

	if len(out) == 0 {
		return "eng"
	}
	return strings.Join(out, "+")
}

func tesseractCode(raw string) string {
	s := strings.ToLower(strings.TrimSpace(Text(raw)))
	if s == "" {
		return ""
	}
	if code, ok := tesseractCodes[strings.ReplaceAll(s, "_", "-")]; ok {
		return code
	}
	if isTesseractName(s) {
		return s
	}
	// Locale codes fall back to their language ("de-AT" -> "deu").
	if lang, _, ok := strings.Cut(strings.ReplaceAll(s, "_", "-"), "-"); ok {
		return tesseractCodes[lang]
	}
	return ""
}

// isTesseractName reports whether s already looks like a traineddata name,
// e.g. "eng" or "chi_sim".
func isTesseractName(s string) bool {
	base, script, hasScript := strings.Cut(s, "_")
	if len(base) != 3 || (hasScript && len(script) < 3) {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && r != '_' {
			return false
		}
	}
	return true
}
