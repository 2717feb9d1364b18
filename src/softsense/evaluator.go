package softsense

// Report bundles the outcome of all three processors for one text.
type Report struct {
	Sense     SenseResult     `json:"sense"`
	LoveFirst LoveFirstResult `json:"love_first"`
	YinYang   SyncResult      `json:"yin_yang"`
	Composite float64         `json:"composite"`
}

// Evaluator runs a text through every processor and derives a single
// composite sentiment score from the individual readings.
type Evaluator struct {
	Core      *Core
	LoveFirst *LoveFirst
	YinYang   *YinYang
}

// -----------------------------------------------------------------------------

func NewEvaluator() *Evaluator {
	return &Evaluator{
		Core:      NewCore(),
		LoveFirst: NewLoveFirst(),
		YinYang:   NewYinYang(),
	}
}

// -----------------------------------------------------------------------------

// Evaluate scores the text through all processors.
func (e *Evaluator) Evaluate(text string) Report {
	report := Report{
		Sense:     e.Core.Sense(text),
		LoveFirst: e.LoveFirst.Evaluate(text),
		YinYang:   e.YinYang.Synchronize(text),
	}
	report.Composite = (report.Sense.Harmonics.Balance +
		report.LoveFirst.Score +
		report.YinYang.State.Balance) / 3
	return report
}

// -----------------------------------------------------------------------------

// Score returns only the composite sentiment score for the text.
func (e *Evaluator) Score(text string) float64 {
	return e.Evaluate(text).Composite
}
