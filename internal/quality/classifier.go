package quality

// Thresholds of the decision rules.
const (
	DeadThreshold          = 0.80
	PartiallyDeadThreshold = 0.33
	FirstBinThreshold      = 0.88
	MultiplicityThreshold  = 6
	AsymmetryThreshold     = 0.35
)

// Rule is one step of the decision tree. Rules are evaluated in order and
// the first matching rule decides the state.
type Rule struct {
	Name  string
	Match func(in Inputs) bool
	State State
}

// Rules is the ordered decision tree. Power status outranks efficiency,
// efficiency outranks noise, noise outranks shape.
var Rules = []Rule{
	{
		Name:  "power",
		Match: func(in Inputs) bool { return !nominal(in.HV) || !nominal(in.LV) },
		State: StateOff,
	},
	{
		Name:  "dead",
		Match: func(in Inputs) bool { return in.Dead >= DeadThreshold },
		State: StateDead,
	},
	{
		Name:  "partially-dead",
		Match: func(in Inputs) bool { return PartiallyDeadThreshold <= in.Dead && in.Dead < DeadThreshold },
		State: StatePartiallyDead,
	},
	{
		Name:  "cluster-size",
		Match: func(in Inputs) bool { return in.FirstBin >= FirstBinThreshold },
		State: StateNoisyStrip,
	},
	{
		Name:  "noisy-strips",
		Match: func(in Inputs) bool { return in.NoisyStrips > 0 },
		State: StateNoisyStrip,
	},
	{
		Name:  "multiplicity",
		Match: func(in Inputs) bool { return in.Multiplicity >= MultiplicityThreshold },
		State: StateNoisyChamber,
	},
	{
		Name:  "asymmetry",
		Match: func(in Inputs) bool { return in.Asymmetry > AsymmetryThreshold },
		State: StateBadShape,
	},
}

// nominal reports whether a power status reads as ON. Status maps store
// integers, so the value is truncated first.
func nominal(status float64) bool {
	return int(status) == 1
}

// Classify returns the quality state for one detector unit.
func Classify(in Inputs) State {
	for _, r := range Rules {
		if r.Match(in) {
			return r.State
		}
	}
	return StateGood
}
