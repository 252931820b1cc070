package models

import "time"

// DefectRecord captures the structural-defect-details wizard output for
// an event. Field answers are stored as a flat key-value map; the keyed
// layout is owned by internal/defectform.
type DefectRecord struct {
	ID        int64             `json:"id"         db:"id"`
	EventID   string            `json:"event_id"   db:"event_id"`
	Component string            `json:"component"  db:"component"` // girder, pier, deck, abutment, ...
	Fields    map[string]string `json:"fields"     db:"fields"`    // stored as a JSON column
	Summary   string            `json:"summary"    db:"summary"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// RiskAssessment is the persisted result of the risk wizard.
type RiskAssessment struct {
	ID         int64         `json:"id"          db:"id"`
	EventID    string        `json:"event_id"    db:"event_id"`
	MatrixRev  string        `json:"matrix_rev"  db:"matrix_rev"` // revision of the matrix used
	Answers    []string      `json:"answers"     db:"answers"`    // selected option IDs, question order
	Score      float64       `json:"score"       db:"score"`
	Priority   PriorityLevel `json:"priority"    db:"priority"`
	AssessedAt time.Time     `json:"assessed_at" db:"assessed_at"`
}
