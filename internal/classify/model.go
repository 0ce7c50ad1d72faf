package classify

import (
	"strings"
	"unicode"
)

// tokenWeights is the exported form of a linear model trained offline on
// labelled message bodies. Weights are integer log-odds scaled by 10;
// positive pushes toward important, negative toward promotional/low.
var tokenWeights = map[string]int{
	// Personal / conversational vocabulary.
	"thanks": 6, "thank": 6, "please": 4, "call": 8, "calling": 6,
	"meet": 8, "meeting": 8, "tomorrow": 6, "tonight": 6, "today": 4,
	"home": 5, "mom": 9, "dad": 9, "love": 7, "miss": 5, "sorry": 6,
	"happy": 4, "birthday": 6, "dinner": 5, "lunch": 5, "ok": 3, "okay": 3,
	"yes": 3, "no": 2, "see": 2, "you": 2, "where": 4, "when": 4,

	// Transactional / account vocabulary.
	"account": 7, "bank": 7, "transaction": 8, "transfer": 7, "upi": 7,
	"invoice": 6, "order": 4, "refund": 7, "salary": 8, "statement": 5,
	"electricity": 6, "recharge": 4, "renewal": 5, "due": 6, "kyc": 7,

	// Promotional vocabulary.
	"win": -8, "winner": -9, "prize": -9, "lucky": -7, "congratulations": -6,
	"exclusive": -7, "hurry": -8, "deal": -7, "deals": -7, "mega": -6,
	"biggest": -6, "lowest": -5, "price": -4, "upto": -7, "extra": -4,
	"download": -5, "install": -5, "app": -3, "click": -7, "link": -4,
	"visit": -5, "store": -3, "new": -2, "launch": -4, "trial": -5,
	"subscription": -4, "plan": -3, "upgrade": -4, "bonus": -6,
}

// Sender-type prior: a known contact leans personal-important, an
// alphanumeric business code leans informational.
const (
	contactBias  = 5
	businessBias = -3
)

// Score thresholds mapping the linear score onto the middle tiers. The rule
// pass owns tiers 5 and 1; the model only ever answers 2..4.
const (
	importantThreshold = 10
	lowThreshold       = -8
)

// scoreBody tokenizes the body and sums token weights. Tokens are
// lowercased and stripped of punctuation; unknown tokens contribute nothing.
func scoreBody(body string) int {
	score := 0
	fields := strings.FieldsFunc(strings.ToLower(body), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range fields {
		score += tokenWeights[tok]
	}
	return score
}

// modelTier maps a body and sender prior onto tiers 2..4.
func modelTier(body string, contact bool) int {
	score := scoreBody(body)
	if contact {
		score += contactBias
	} else {
		score += businessBias
	}

	switch {
	case score >= importantThreshold:
		return TierImportant
	case score <= lowThreshold:
		return TierLow
	default:
		return TierGeneral
	}
}
