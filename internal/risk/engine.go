// Package risk evaluates risk-wizard answers against a risk matrix.
//
// The score is the maximum severity factor across the four consequence
// answers multiplied by the likelihood factor. "Not applicable" answers
// contribute a factor of 0.0 and are allowed on at most three of the
// four consequence questions: an assessment where nothing applies is
// not an assessment.
package risk

import (
	"fmt"

	"github.com/structiq/fieldscan-agent/internal/riskmatrix"
	"github.com/structiq/fieldscan-agent/models"
)

// MaxNotApplicable is the number of consequence questions that may be
// answered "Not applicable" in a single assessment.
const MaxNotApplicable = 3

// Answers holds the selected option IDs, in question order.
type Answers struct {
	Consequences []string
	Likelihood   string
}

// Result is the outcome of evaluating one set of answers.
type Result struct {
	Score            float64
	Priority         models.PriorityLevel
	MaxConsequence   float64
	LikelihoodFactor float64
	NotApplicable    int
}

// Evaluate computes the risk score and priority for the given answers.
func Evaluate(m *riskmatrix.Matrix, ans Answers) (*Result, error) {
	if len(ans.Consequences) != len(m.Consequences) {
		return nil, fmt.Errorf("expected %d consequence answers, got %d",
			len(m.Consequences), len(ans.Consequences))
	}

	res := &Result{}
	for i, q := range m.Consequences {
		opt := q.Option(ans.Consequences[i])
		if opt == nil {
			return nil, fmt.Errorf("question %q: unknown option %q", q.ID, ans.Consequences[i])
		}
		if opt.NotApplicable {
			res.NotApplicable++
			continue
		}
		if opt.Factor > res.MaxConsequence {
			res.MaxConsequence = opt.Factor
		}
	}
	if res.NotApplicable > MaxNotApplicable {
		return nil, fmt.Errorf("at most %d consequence questions may be marked not applicable", MaxNotApplicable)
	}

	lopt := m.Likelihood.Option(ans.Likelihood)
	if lopt == nil {
		return nil, fmt.Errorf("likelihood: unknown option %q", ans.Likelihood)
	}
	res.LikelihoodFactor = lopt.Factor

	res.Score = res.MaxConsequence * res.LikelihoodFactor
	res.Priority = m.MatchPriority(res.Score)
	return res, nil
}
