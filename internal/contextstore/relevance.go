package contextstore

const (
	TagFact             = "fact"
	TagToolOutput       = "tool-output"
	TagError            = "error"
	TagCode             = "code"
	TagTask             = "task"
	TagUserInput        = "user-input"
	TagSummary          = "summary"
	TagCritical         = "critical"
	TagRememberedIntent = "remembered-intent"
)

const baseRelevance = 0.5

var tagBonuses = map[string]float64{
	TagError:            0.2,
	TagCode:             0.15,
	TagTask:             0.1,
	TagUserInput:        0.1,
	TagSummary:          0.2,
	TagRememberedIntent: 0.1,
}

// InitialRelevance scores a new item from its tags. Critical items always
// score 1; everything else starts at 0.5 plus the bonuses of its tags.
func InitialRelevance(_ string, tags []string) float64 {
	score := baseRelevance

	for _, tag := range tags {
		if tag == TagCritical {
			return 1
		}
		score += tagBonuses[tag]
	}

	return min(1, score)
}
