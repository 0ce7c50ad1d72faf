// Package identity resolves raw sender addresses to stable sender records.
//
// Normalization is a total function: every input maps to some canonical key,
// preferring a validated E.164 form and falling back to the regional pattern
// rules so malformed-but-equivalent inputs still collapse to the same key.
package identity

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/nyaruka/phonenumbers"
)

var (
	digitsRe      = regexp.MustCompile(`[^0-9]`)
	e164Re        = regexp.MustCompile(`^\+[0-9]{10,15}$`)
	contactRe     = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
	brandPrefixRe = regexp.MustCompile(`^[A-Z]{2}-`)
)

// StripNonDigits removes every non-digit character, keeping a leading '+'
// if the input contained one anywhere.
func StripNonDigits(raw string) string {
	hasPlus := strings.Contains(raw, "+")
	digits := digitsRe.ReplaceAllString(raw, "")
	if hasPlus {
		return "+" + digits
	}
	return digits
}

// Normalize converts a raw phone number into its canonical identity key.
// A number that parses and validates for the region is returned in E.164
// form; anything else falls back to the region's heuristic rules, so a
// national-format number and its E.164 spelling collapse to one key even
// when the parser rejects both. Idempotent: normalizing an already
// normalized key returns the same key.
func Normalize(raw, region string) string {
	num, err := phonenumbers.Parse(raw, region)
	if err == nil && phonenumbers.IsValidNumber(num) {
		return phonenumbers.Format(num, phonenumbers.E164)
	}
	return regionalHeuristic(region).Normalize(raw)
}

var (
	heuristicsMu sync.Mutex
	heuristics   = map[string]*HeuristicNormalizer{}
)

func regionalHeuristic(region string) *HeuristicNormalizer {
	heuristicsMu.Lock()
	defer heuristicsMu.Unlock()
	h, ok := heuristics[region]
	if !ok {
		h = NewHeuristicNormalizer(phonenumbers.GetCountryCodeForRegion(region))
		heuristics[region] = h
	}
	return h
}

// HeuristicNormalizer applies regional pattern rules in priority order when
// no full phone number parser is available. Rules are tried top to bottom;
// the first match wins, and unmatched input passes through stripped.
type HeuristicNormalizer struct {
	countryCode string
	ccTenRe     *regexp.Regexp
	zeroTenRe   *regexp.Regexp
	bareTenRe   *regexp.Regexp
	mobileRe    *regexp.Regexp
}

// NewHeuristicNormalizer builds a normalizer for a default country calling code.
func NewHeuristicNormalizer(countryCode int) *HeuristicNormalizer {
	cc := fmt.Sprintf("%d", countryCode)
	return &HeuristicNormalizer{
		countryCode: cc,
		ccTenRe:     regexp.MustCompile(`^` + cc + `[0-9]{10}$`),
		zeroTenRe:   regexp.MustCompile(`^0[0-9]{10}$`),
		bareTenRe:   regexp.MustCompile(`^[0-9]{10}$`),
		mobileRe:    regexp.MustCompile(`^[789][0-9]{9}$`),
	}
}

// Normalize applies the rule tiers to a raw number.
func (h *HeuristicNormalizer) Normalize(raw string) string {
	stripped := StripNonDigits(raw)

	switch {
	case e164Re.MatchString(stripped):
		return stripped
	case h.ccTenRe.MatchString(stripped):
		return "+" + stripped
	case h.zeroTenRe.MatchString(stripped):
		return "+" + h.countryCode + stripped[1:]
	case h.bareTenRe.MatchString(stripped):
		return "+" + h.countryCode + stripped
	case h.mobileRe.MatchString(stripped):
		return h.countryCode + stripped
	default:
		return stripped
	}
}

// TrimSenderID removes a two-letter brand/country routing prefix such as
// "VM-" or "AX-" from a business sender id.
func TrimSenderID(s string) string {
	return brandPrefixRe.ReplaceAllString(s, "")
}

// IsPhoneAddress reports whether a trimmed address looks like a phone number:
// an optional leading '+' followed by 8 to 15 digits. Any letter anywhere
// forces the address to be treated as a business code, even when it carries
// a long digit run.
func IsPhoneAddress(s string) bool {
	return contactRe.MatchString(s)
}
