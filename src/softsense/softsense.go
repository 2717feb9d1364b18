package softsense

import "strings"

// Production thresholds for the three processors.
const (
	DefaultBalanceThreshold = 0.7
	DefaultTriggerThreshold = 0.6
	DefaultYinYangThreshold = 0.3
)

// -----------------------------------------------------------------------------
// All processors in this package are pure: they score a piece of free text
// (an allocation note, a pulse annotation) and return a typed result. No
// processor keeps state between calls.
// -----------------------------------------------------------------------------

// hasAny reports whether lowered contains at least one of the keywords.
func hasAny(lowered string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// -----------------------------------------------------------------------------
// Core harmonics
// -----------------------------------------------------------------------------

// Harmonics are the per-dimension scores of one sensed text.
type Harmonics struct {
	Dignity    float64 `json:"dignity"`
	Prosperity float64 `json:"prosperity"`
	Respect    float64 `json:"respect"`
	Balance    float64 `json:"balance"`
}

// SenseResult is the outcome of scoring one text through the core harmonics.
type SenseResult struct {
	Harmonics       Harmonics `json:"harmonics"`
	Balanced        bool      `json:"balanced"`
	Warnings        []string  `json:"warnings"`
	Recommendations []string  `json:"recommendations"`
}

// Core performs keyword-heuristic harmonic scoring of free text.
type Core struct {
	BalanceThreshold float64
}

// -----------------------------------------------------------------------------

func NewCore() *Core {
	return &Core{BalanceThreshold: DefaultBalanceThreshold}
}

// -----------------------------------------------------------------------------

// Sense scores the text and reports imbalances against the threshold.
func (c *Core) Sense(text string) SenseResult {
	harmonics := calculateHarmonics(text)

	balanced := harmonics.Balance >= c.BalanceThreshold &&
		harmonics.Dignity >= c.BalanceThreshold &&
		harmonics.Prosperity >= c.BalanceThreshold &&
		harmonics.Respect >= c.BalanceThreshold

	var warnings, recommendations []string

	if harmonics.Dignity < c.BalanceThreshold {
		warnings = append(warnings, "Dignity levels below threshold")
		recommendations = append(recommendations, "Increase dignity preservation in decision logic")
	}
	if harmonics.Prosperity < c.BalanceThreshold {
		warnings = append(warnings, "Prosperity alignment below threshold")
		recommendations = append(recommendations, "Enhance prosperity-aligned outcomes")
	}
	if harmonics.Respect < c.BalanceThreshold {
		warnings = append(warnings, "Respect levels below threshold")
		recommendations = append(recommendations, "Strengthen respect protocols")
	}

	return SenseResult{
		Harmonics:       harmonics,
		Balanced:        balanced,
		Warnings:        warnings,
		Recommendations: recommendations,
	}
}

// -----------------------------------------------------------------------------

func calculateHarmonics(text string) Harmonics {
	dignity := 1.0
	prosperity := 1.0
	respect := 1.0

	lowered := strings.ToLower(text)

	// Negative indicators
	if hasAny(lowered, "harm", "damage") {
		dignity -= 0.3
		respect -= 0.2
	}
	if hasAny(lowered, "exclude", "discriminate") {
		dignity -= 0.4
		prosperity -= 0.3
	}
	if hasAny(lowered, "disrespect", "violate") {
		respect -= 0.5
	}

	// Positive indicators
	if hasAny(lowered, "care", "love") {
		dignity = clamp01(dignity + 0.1)
		respect = clamp01(respect + 0.1)
	}
	if hasAny(lowered, "prosper", "flourish") {
		prosperity = clamp01(prosperity + 0.1)
	}

	dignity = clamp01(dignity)
	prosperity = clamp01(prosperity)
	respect = clamp01(respect)

	return Harmonics{
		Dignity:    dignity,
		Prosperity: prosperity,
		Respect:    respect,
		Balance:    (dignity + prosperity + respect) / 3,
	}
}

// -----------------------------------------------------------------------------
// Love First
// -----------------------------------------------------------------------------

// LoveFirstResult is the prioritization outcome for one text.
type LoveFirstResult struct {
	Prioritized bool     `json:"prioritized"`
	Score       float64  `json:"score"`
	Triggers    []string `json:"triggers"`
	Adjustments []string `json:"adjustments"`
}

// LoveFirst prioritizes inputs based on care, respect and flourishing
// signals.
type LoveFirst struct {
	TriggerThreshold float64
}

// -----------------------------------------------------------------------------

func NewLoveFirst() *LoveFirst {
	return &LoveFirst{TriggerThreshold: DefaultTriggerThreshold}
}

// -----------------------------------------------------------------------------

// Evaluate scores the text and reports whether it should be prioritized.
func (lf *LoveFirst) Evaluate(text string) LoveFirstResult {
	score := calculateLoveFirstScore(text)
	prioritized := score >= lf.TriggerThreshold

	var triggers, adjustments []string

	switch {
	case score >= 0.9:
		triggers = append(triggers, "HIGH_LOVE_PULSE: Universal flourishing detected")
	case score >= 0.7:
		triggers = append(triggers, "MODERATE_LOVE_PULSE: Care and respect present")
	case score >= 0.5:
		triggers = append(triggers, "LOW_LOVE_PULSE: Minimal love-first alignment")
	}

	if score < lf.TriggerThreshold {
		adjustments = append(adjustments,
			"Increase care-oriented language and actions",
			"Enhance respect for all stakeholders",
			"Focus on universal flourishing outcomes")
	}

	return LoveFirstResult{
		Prioritized: prioritized,
		Score:       score,
		Triggers:    triggers,
		Adjustments: adjustments,
	}
}

// -----------------------------------------------------------------------------

func calculateLoveFirstScore(text string) float64 {
	careScore := 0.5
	respectScore := 0.5
	flourishingScore := 0.5

	lowered := strings.ToLower(text)

	// Care indicators
	if hasAny(lowered, "care", "compassion", "empathy") {
		careScore += 0.3
	}
	if hasAny(lowered, "love", "kindness") {
		careScore += 0.2
	}
	if hasAny(lowered, "harm", "neglect") {
		careScore -= 0.4
	}

	// Respect indicators
	if hasAny(lowered, "respect", "dignity", "honor") {
		respectScore += 0.3
	}
	if hasAny(lowered, "equal", "fair") {
		respectScore += 0.2
	}
	if hasAny(lowered, "disrespect", "violate", "discriminate") {
		respectScore -= 0.4
	}

	// Flourishing indicators
	if hasAny(lowered, "flourish", "prosper", "thrive") {
		flourishingScore += 0.3
	}
	if hasAny(lowered, "growth", "wellbeing", "wellness") {
		flourishingScore += 0.2
	}
	if hasAny(lowered, "suppress", "restrict", "limit") {
		flourishingScore -= 0.3
	}

	careScore = clamp01(careScore)
	respectScore = clamp01(respectScore)
	flourishingScore = clamp01(flourishingScore)

	return clamp01((careScore + respectScore + flourishingScore) / 3)
}

// -----------------------------------------------------------------------------
// Yin-Yang balance
// -----------------------------------------------------------------------------

// YinYangState holds the opposing scores and their balance.
type YinYangState struct {
	Yin     float64 `json:"yin"`
	Yang    float64 `json:"yang"`
	Balance float64 `json:"balance"`
}

// SyncResult is the outcome of one synchronization pass.
type SyncResult struct {
	Resolved          bool         `json:"resolved"`
	Method            string       `json:"method"`
	State             YinYangState `json:"balanced_state"`
	FailsafeActivated bool         `json:"failsafe_activated"`
	Recommendations   []string     `json:"recommendations"`
}

// YinYang synchronizes opposing tonal forces in a text. With the failsafe
// enabled, an unbalanced reading is forced back to equilibrium by averaging
// both sides.
type YinYang struct {
	BalanceThreshold float64
	FailsafeEnabled  bool
}

// -----------------------------------------------------------------------------

func NewYinYang() *YinYang {
	return &YinYang{BalanceThreshold: DefaultYinYangThreshold, FailsafeEnabled: true}
}

// -----------------------------------------------------------------------------

// Synchronize scores both forces and resolves an imbalance if possible.
func (yy *YinYang) Synchronize(text string) SyncResult {
	state := YinYangState{
		Yin:  calculateYinScore(text),
		Yang: calculateYangScore(text),
	}
	state.Balance = clamp01(1.0 - abs(state.Yin-state.Yang))

	var recommendations []string
	method := "HARMONIC_SYNC"
	failsafeActivated := false

	isBalanced := state.Balance >= yy.BalanceThreshold

	if !isBalanced {
		if yy.FailsafeEnabled {
			failsafeActivated = true
			method = "FAILSAFE_GATE"
			avg := (state.Yin + state.Yang) / 2
			state.Yin = avg
			state.Yang = avg
			state.Balance = 1.0
			recommendations = append(recommendations, "Fail-safe gate activated for emergency balancing")
		} else {
			method = "MANUAL_INTERVENTION_REQUIRED"
			recommendations = append(recommendations, "Manual intervention recommended for balance restoration")
		}
	}

	if state.Yin < 0.4 && state.Yang > 0.6 {
		recommendations = append(recommendations,
			"Increase Yin (receptive, nurturing) elements",
			"Balance assertive actions with contemplative approaches")
	} else if state.Yang < 0.4 && state.Yin > 0.6 {
		recommendations = append(recommendations,
			"Increase Yang (active, assertive) elements",
			"Balance nurturing with decisive action")
	}

	return SyncResult{
		Resolved:          isBalanced || failsafeActivated,
		Method:            method,
		State:             state,
		FailsafeActivated: failsafeActivated,
		Recommendations:   recommendations,
	}
}

// -----------------------------------------------------------------------------

func calculateYinScore(text string) float64 {
	score := 0.5
	lowered := strings.ToLower(text)

	if hasAny(lowered, "listen", "receive", "accept") {
		score += 0.2
	}
	if hasAny(lowered, "nurture", "care", "support") {
		score += 0.2
	}
	if hasAny(lowered, "calm", "peace", "gentle") {
		score += 0.15
	}
	if hasAny(lowered, "force", "demand", "dominate") {
		score -= 0.3
	}

	return clamp01(score)
}

// -----------------------------------------------------------------------------

func calculateYangScore(text string) float64 {
	score := 0.5
	lowered := strings.ToLower(text)

	if hasAny(lowered, "act", "do", "execute") {
		score += 0.2
	}
	if hasAny(lowered, "lead", "direct", "decide") {
		score += 0.2
	}
	if hasAny(lowered, "create", "build", "initiate") {
		score += 0.15
	}
	if hasAny(lowered, "passive", "wait", "defer") {
		score -= 0.3
	}

	return clamp01(score)
}

// -----------------------------------------------------------------------------

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
