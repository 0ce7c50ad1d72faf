// Package classify assigns an importance tier (1..5) to message text.
//
// Classification is a two-stage hybrid: a fast rule pass that can
// short-circuit on unambiguous patterns, and a trained linear scoring model
// for everything in between. Both stages are deterministic, so the same
// body and sender context always produce the same tier.
package classify

import "regexp"

// Importance tiers. 5 is critical (OTP/security), 4 important
// (transactional), 3 general, 2 low priority, 1 promotional.
const (
	TierPromotional = 1
	TierLow         = 2
	TierGeneral     = 3
	TierImportant   = 4
	TierCritical    = 5
)

type rule struct {
	tier int
	re   *regexp.Regexp
}

// Rule patterns are ordered: critical first so an OTP inside a marketing
// blast still lands on the critical tier.
var rules = []rule{
	// OTP and security patterns.
	{TierCritical, regexp.MustCompile(`(?i)\b(?:otp|one[ -]?time\s+pass(?:word|code)?)\b`)},
	{TierCritical, regexp.MustCompile(`(?i)(?:verification|security|login|auth(?:entication)?)\s+code[\s:\-]*\d{4,8}\b`)},
	{TierCritical, regexp.MustCompile(`(?i)\b(?:code|pin)[\s:\-]+(\d{4,8})\b`)},
	{TierCritical, regexp.MustCompile(`(?i)\b(?:2fa|two[ -]factor)\b`)},
	{TierCritical, regexp.MustCompile(`(?i)\bdo\s+not\s+share\b`)},
	{TierCritical, regexp.MustCompile(`(?i)\b(?:fraud|unauthori[sz]ed|suspicious\s+activity|account\s+(?:locked|blocked|suspended))\b`)},
	{TierCritical, regexp.MustCompile(`(?i)\b(?:urgent|emergency|immediately)\b`)},

	// Transactional patterns.
	{TierImportant, regexp.MustCompile(`(?i)\b(?:debited|credited|withdrawn|deposited)\b`)},
	{TierImportant, regexp.MustCompile(`(?i)\b(?:payment|bill|emi|premium)\s+(?:due|received|failed|successful)\b`)},
	{TierImportant, regexp.MustCompile(`(?i)\b(?:available\s+)?balance\s*(?:is|:)\b`)},
	{TierImportant, regexp.MustCompile(`(?i)\b(?:out\s+for\s+delivery|delivered|shipped|dispatched)\b`)},
	{TierImportant, regexp.MustCompile(`(?i)\b(?:appointment|booking|reservation)\s+(?:confirmed|cancelled|rescheduled)\b`)},
	{TierImportant, regexp.MustCompile(`(?i)\b(?:pnr|flight|train)\s*(?:no\.?|number)?\s*[:#]?\s*[A-Z0-9]{5,10}\b`)},

	// Promotional patterns.
	{TierPromotional, regexp.MustCompile(`(?i)\b\d{1,2}%\s*(?:off|discount)\b`)},
	{TierPromotional, regexp.MustCompile(`(?i)\b(?:sale|mega\s+offer|flat\s+\d+|cashback|coupon|voucher)\b`)},
	{TierPromotional, regexp.MustCompile(`(?i)\b(?:buy\s+now|shop\s+now|order\s+now|limited\s+(?:time|period)\s+offer)\b`)},
	{TierPromotional, regexp.MustCompile(`(?i)\b(?:unsubscribe|t&c\s+apply|tca?\s+apply)\b`)},
}

// matchRules returns the tier of the first matching rule, or 0 when no rule
// fires and the model should decide.
func matchRules(body string) int {
	for _, r := range rules {
		if r.re.MatchString(body) {
			return r.tier
		}
	}
	return 0
}
