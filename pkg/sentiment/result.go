package sentiment

// Label buckets a 0-100 score into a sentiment class.
type Label string

const (
	LabelVeryPositive     Label = "very_positive"
	LabelPositive         Label = "positive"
	LabelSlightlyPositive Label = "slightly_positive"
	LabelNeutral          Label = "neutral"
	LabelSlightlyNegative Label = "slightly_negative"
	LabelNegative         Label = "negative"
	LabelVeryNegative     Label = "very_negative"
)

// Result is the annotation attached to a stored news article.
type Result struct {
	Score      float64 `json:"score"`      // 0 (very negative) .. 100 (very positive)
	Sentiment  Label   `json:"sentiment"`  // bucketed label for Score
	Confidence float64 `json:"confidence"` // 0 .. 1
	Method     string  `json:"method"`     // which path produced the score
}

// labelForScore maps a score onto its bucket.
func labelForScore(score float64) Label {
	switch {
	case score >= 70:
		return LabelVeryPositive
	case score >= 60:
		return LabelPositive
	case score >= 45:
		return LabelSlightlyPositive
	case score >= 40:
		return LabelNeutral
	case score >= 30:
		return LabelSlightlyNegative
	case score >= 20:
		return LabelNegative
	default:
		return LabelVeryNegative
	}
}

// Neutral is the default returned when nothing could be analyzed. The label
// is forced to neutral regardless of the midpoint score's bucket.
func Neutral(method string) Result {
	return Result{Score: 50, Sentiment: LabelNeutral, Confidence: 0.3, Method: method}
}
