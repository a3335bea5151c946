package sanitizer

import "regexp"

func rule(pairs ...string) patternRule {
	r := make(patternRule, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		r = append(r, replacement{re: regexp.MustCompile(pairs[i]), repl: pairs[i+1]})
	}
	return r
}

var passwordRule = rule(
	`(?i)(<input[^>]*type=["']password["'][^>]*value=)["'][^"']*["']`, `${1}"[FILTERED]"`,
	`(?i)(password|пароль|passwd|pwd)\s*[:=]\s*["']?[^"'\s]{3,}["']?`, `${1}: [FILTERED]`,
)

var secretRule = rule(
	`(?i)(api[_-]?key|api[_-]?secret|api[_-]?token|secret[_-]?key|secret[_-]?token|access[_-]?key|access[_-]?token|session[_-]?id|session[_-]?token|token|токен)\s*[:=]\s*["']?[a-zA-Z0-9_-]{16,}["']?`, `${1}: [FILTERED]`,
	`(?i)(bearer\s+)[a-zA-Z0-9_.-]{20,}`, `${1}[FILTERED]`,
	`\b(?:sk|pk)[-_][a-zA-Z0-9_-]{32,}`, `[FILTERED]`,
)

var cookieRule = rule(
	`(?i)(cookie|куки)\s*[:=]\s*["']?[^"'\n]{10,}["']?`, `${1}: [FILTERED]`,
)

var cardRule = rule(
	`(?i)(card[_-]?number|номер[_ -]?карты)\s*[:=]\s*["']?\d{13,19}["']?`, `${1}: [FILTERED_CARD]`,
	`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`, `[FILTERED_CARD]`,
	`(?i)(cvv2?|cvc2?)\s*[:=]\s*["']?\d{3,4}["']?`, `${1}: [FILTERED]`,
	`(?i)(expir\w*|срок)\s*[:=]\s*["']?\d{2}[/-]\d{2,4}["']?`, `${1}: [FILTERED]`,
)

var emailRule = rule(
	`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`, `[FILTERED_EMAIL]`,
)

// \b в RE2 знает только ASCII, поэтому границы кириллических слов задаются группой.
var phoneRule = rule(
	`(?i)(phone|телефон|тел\.?)\s*[:=]\s*["']?[+\d\s()-]{7,}["']?`, `${1}: [FILTERED_PHONE]`,
	`\+7\s?\(?\d{3}\)?\s?\d{3}[-.\s]?\d{2}[-.\s]?\d{2}`, `[FILTERED_PHONE]`,
	`(^|\D)8\s?\(?\d{3}\)?\s?\d{3}[-.\s]?\d{2}[-.\s]?\d{2}`, `${1}[FILTERED_PHONE]`,
	`\+\d{1,3}[-.\s]?\(?\d{1,4}\)?(?:[-.\s]?\d{2,4}){2,3}`, `[FILTERED_PHONE]`,
)

var addressRule = rule(
	`(?i)(address|адрес)\s*[:=]\s*["']?[^"'\n]{10,}["']?`, `${1}: [FILTERED_ADDRESS]`,
	`(^|[^\p{L}])(?:г\.|город|пос\.|поселок|посёлок|пгт|село|деревня|дер\.)\s*\p{Lu}[\p{L}-]*`, `${1}[FILTERED_ADDRESS]`,
	`(^|[^\p{L}])(?:улица|ул\.|проспект|пр-т|переулок|пер\.|бульвар|б-р|шоссе)\s*[\p{L}\d-]+(?:\s[\p{L}\d-]+)?(?:,?\s*(?:д\.|дом)\s*\d+[\p{L}\d/]*)?`, `${1}[FILTERED_ADDRESS]`,
	`(^|\D)\d{6}(\D|$)`, `${1}[FILTERED_ADDRESS]${2}`,
)
