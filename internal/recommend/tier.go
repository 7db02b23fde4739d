package recommend

import (
	"fmt"

	"passos-predictor/internal/models"
)

type Tier string

const (
	TierGood      Tier = "good"
	TierAttention Tier = "attention"
	TierCritical  Tier = "critical"
)

var tierColors = map[Tier]string{
	TierGood:      "#27AE60",
	TierAttention: "#F5A623",
	TierCritical:  "#E74C3C",
}

// Color is the card accent for the tier.
func (t Tier) Color() string { return tierColors[t] }

// IndicatorTier classifies a [0,10] indicator: >= 7 good, >= 5 attention.
func IndicatorTier(v float64) Tier {
	switch {
	case v >= 7:
		return TierGood
	case v >= 5:
		return TierAttention
	default:
		return TierCritical
	}
}

// Card is one indicator as displayed next to the result.
type Card struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Tier  Tier    `json:"tier"`
	Color string  `json:"color"`
}

// Display renders the value with one decimal.
func (c Card) Display() string {
	return fmt.Sprintf("%.1f", c.Value)
}

// Cards builds the seven indicator cards of a record.
func Cards(r models.StudentRecord) []Card {
	indicators := r.Indicators()
	cards := make([]Card, len(indicators))
	for i, ind := range indicators {
		tier := IndicatorTier(ind.Value)
		cards[i] = Card{Name: ind.Name, Value: ind.Value, Tier: tier, Color: tier.Color()}
	}
	return cards
}

// Verdict is the headline shown above the probability.
type Verdict struct {
	Level    string `json:"level"`
	Positive bool   `json:"positive"`
	Text     string `json:"text"`
}

// VerdictFor returns ALTA for the positive class, BAIXA otherwise.
func VerdictFor(label int) Verdict {
	if label == 1 {
		return Verdict{Level: "ALTA", Positive: true,
			Text: "O aluno tem ALTA probabilidade de atingir o Ponto de Virada"}
	}
	return Verdict{Level: "BAIXA",
		Text: "O aluno tem BAIXA probabilidade de atingir o Ponto de Virada"}
}
