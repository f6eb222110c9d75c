package report

// Risk tier thresholds are clinical policy, not computed statistics. Keep
// them here as configuration-like constants.
const (
	highRiskThreshold     = 0.7
	moderateRiskThreshold = 0.5
)

type Tier int

const (
	TierLow Tier = iota
	TierModerate
	TierHigh
)

func TierFor(confidence float64) Tier {
	switch {
	case confidence > highRiskThreshold:
		return TierHigh
	case confidence > moderateRiskThreshold:
		return TierModerate
	default:
		return TierLow
	}
}

func (t Tier) color() (r, g, b int) {
	switch t {
	case TierHigh:
		return 211, 47, 47
	case TierModerate:
		return 245, 124, 0
	default:
		return 56, 142, 60
	}
}

func (t Tier) recommendations() []string {
	switch t {
	case TierHigh:
		return []string{
			"Urgent neurological consultation required",
			"Consider Acetylcholinesterase inhibitors (Donepezil/Rivastigmine)",
			"Maintain brain-healthy lifestyle (exercise, diet, sleep)",
		}
	case TierModerate:
		return []string{
			"Early-stage dementia likely - consult neurologist",
			"Maintain brain-healthy lifestyle (exercise, diet, sleep)",
		}
	default:
		return []string{
			"Continue routine screening annually",
			"Maintain brain-healthy lifestyle (exercise, diet, sleep)",
		}
	}
}
