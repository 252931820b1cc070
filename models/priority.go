package models

// PriorityLevel represents the repair priority assigned by a risk assessment.
type PriorityLevel string

const (
	PriorityP1      PriorityLevel = "P1"
	PriorityP2      PriorityLevel = "P2"
	PriorityP3      PriorityLevel = "P3"
	PriorityP4      PriorityLevel = "P4"
	PriorityUnknown PriorityLevel = "UNKNOWN"
)

// Weight returns a numeric weight for sorting (higher = more urgent).
func (p PriorityLevel) Weight() int {
	switch p {
	case PriorityP1:
		return 4
	case PriorityP2:
		return 3
	case PriorityP3:
		return 2
	case PriorityP4:
		return 1
	default:
		return 0
	}
}

func (p PriorityLevel) String() string {
	return string(p)
}

// MapPriority normalises backend priority codes to PriorityLevel.
func MapPriority(raw string) PriorityLevel {
	switch raw {
	case "P1", "p1", "1":
		return PriorityP1
	case "P2", "p2", "2":
		return PriorityP2
	case "P3", "p3", "3":
		return PriorityP3
	case "P4", "p4", "4":
		return PriorityP4
	default:
		return PriorityUnknown
	}
}
