// Package recommend turns a student's indicators into pedagogical
// recommendations and display tiers.
package recommend

import (
	"fmt"

	"passos-predictor/internal/models"
)

// Thresholds below which an indicator triggers a recommendation.
const (
	IAAThreshold = 6.0
	IEGThreshold = 6.0
	IDAThreshold = 5.0
	IPSThreshold = 5.5
	IPVThreshold = 6.0
)

// HealthyMessage is shown when no rule fires.
const HealthyMessage = "Aluno com indicadores saudáveis! Manter acompanhamento regular e considerar indicação para bolsa/programa avançado."

// Recommendation is one fired rule. Title is the highlighted lead-in.
type Recommendation struct {
	Indicator string `json:"indicator"`
	Title     string `json:"title"`
	Text      string `json:"text"`
}

func (r Recommendation) String() string {
	return r.Title + " " + r.Text
}

// Advice is the ordered list of recommendations for one record.
type Advice struct {
	Items   []Recommendation `json:"items"`
	Healthy bool             `json:"healthy"`
	Message string           `json:"message,omitempty"`
}

// Messages flattens the advice into plain strings, the healthy message when
// no rule fired.
func (a Advice) Messages() []string {
	if a.Healthy {
		return []string{a.Message}
	}
	out := make([]string, len(a.Items))
	for i, r := range a.Items {
		out[i] = r.String()
	}
	return out
}

// Recommend evaluates the rules in fixed order: IAA, IEG, IDA, IPS, Defas, IPV.
func Recommend(r models.StudentRecord) Advice {
	var items []Recommendation
	if r.IAA < IAAThreshold {
		items = append(items, Recommendation{
			Indicator: "IAA",
			Title:     "Auto-avaliação (IAA) baixa",
			Text:      "— promover atividades de autoconhecimento e valorização pessoal.",
		})
	}
	if r.IEG < IEGThreshold {
		items = append(items, Recommendation{
			Indicator: "IEG",
			Title:     "Engajamento (IEG) abaixo do esperado",
			Text:      "— incentivar participação nas aulas e entrega de atividades.",
		})
	}
	if r.IDA < IDAThreshold {
		items = append(items, Recommendation{
			Indicator: "IDA",
			Title:     "Desempenho Acadêmico (IDA) crítico",
			Text:      "— considerar reforço em Matemática e Português.",
		})
	}
	if r.IPS < IPSThreshold {
		items = append(items, Recommendation{
			Indicator: "IPS",
			Title:     "Indicador Psicossocial (IPS) reduzido",
			Text:      "— acionar suporte psicopedagógico.",
		})
	}
	if r.Defas > 0 {
		items = append(items, Recommendation{
			Indicator: "Defas",
			Title:     fmt.Sprintf("Defasagem escolar de %d fase(s)", r.Defas),
			Text:      "— monitorar progressão e avaliar nivelamento.",
		})
	}
	if r.IPV < IPVThreshold {
		items = append(items, Recommendation{
			Indicator: "IPV",
			Title:     "IPV baixo",
			Text:      "— trabalhar motivação, liderança e protagonismo com o aluno.",
		})
	}

	if len(items) == 0 {
		return Advice{Healthy: true, Message: HealthyMessage}
	}
	return Advice{Items: items}
}
