package sentiment

import "strings"

// Word lists are intentionally small and finance-flavoured: the lexicon is a
// deterministic fallback scorer, not a serious NLP model.
var positiveWords = map[string]struct{}{
	"beat": {}, "beats": {}, "gain": {}, "gains": {}, "growth": {},
	"rally": {}, "rallies": {}, "record": {}, "strong": {}, "surge": {},
	"surges": {}, "up": {}, "upgrade": {}, "upgraded": {}, "profit": {},
	"profits": {}, "outperform": {}, "bullish": {}, "soar": {}, "soars": {},
	"positive": {}, "exceed": {}, "exceeds": {}, "rise": {}, "rises": {},
	"win": {}, "wins": {}, "boost": {}, "boosts": {}, "jump": {}, "jumps": {},
}

var negativeWords = map[string]struct{}{
	"miss": {}, "misses": {}, "loss": {}, "losses": {}, "drop": {},
	"drops": {}, "fall": {}, "falls": {}, "weak": {}, "down": {},
	"downgrade": {}, "downgraded": {}, "plunge": {}, "plunges": {},
	"bearish": {}, "lawsuit": {}, "probe": {}, "recall": {}, "cut": {},
	"cuts": {}, "warning": {}, "decline": {}, "declines": {}, "slump": {},
	"slumps": {}, "negative": {}, "risk": {}, "fears": {}, "crash": {},
}

// lexiconScore scores text by counting polar words. The score is centred at
// 50 and shifted by the balance of positive vs negative matches; confidence
// grows with the number of matches.
func lexiconScore(text string) Result {
	var positive, negative int
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,;:!?'\"()[]")
		if _, ok := positiveWords[token]; ok {
			positive++
		}
		if _, ok := negativeWords[token]; ok {
			negative++
		}
	}

	matched := positive + negative
	if matched == 0 {
		return Result{Score: 50, Sentiment: LabelNeutral, Confidence: 0.3, Method: "lexicon"}
	}

	balance := float64(positive-negative) / float64(matched) // -1 .. 1
	score := 50 + balance*50

	confidence := 0.3 + 0.06*float64(matched)
	if confidence > 0.9 {
		confidence = 0.9
	}

	return Result{
		Score:      round2(score),
		Sentiment:  labelForScore(score),
		Confidence: round2(confidence),
		Method:     "lexicon",
	}
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int(v*100-0.5)) / 100
	}
	return float64(int(v*100+0.5)) / 100
}
