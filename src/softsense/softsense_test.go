package softsense

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreSense(t *testing.T) {
	core := NewCore()

	tests := []struct {
		name         string
		text         string
		wantBalance  float64
		wantBalanced bool
		wantWarnings int
	}{
		{
			name:         "neutral text keeps full harmonics",
			text:         "rebalance the ledger",
			wantBalance:  1.0,
			wantBalanced: true,
			wantWarnings: 0,
		},
		{
			name:         "harm stays at threshold",
			text:         "this could harm the position",
			wantBalance:  (0.7 + 1.0 + 0.8) / 3,
			wantBalanced: true,
			wantWarnings: 0,
		},
		{
			name:         "exclusion and violation break balance",
			text:         "exclude the desk and violate limits",
			wantBalance:  (0.6 + 0.7 + 0.5) / 3,
			wantBalanced: false,
			wantWarnings: 2,
		},
		{
			name:         "positive language restores harmonics",
			text:         "we care for clients and help them prosper",
			wantBalance:  1.0,
			wantBalanced: true,
			wantWarnings: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := core.Sense(tt.text)
			assert.InDelta(t, tt.wantBalance, result.Harmonics.Balance, 1e-9)
			assert.Equal(t, tt.wantBalanced, result.Balanced)
			assert.Len(t, result.Warnings, tt.wantWarnings)
			assert.Len(t, result.Recommendations, tt.wantWarnings)
		})
	}
}

func TestCoreSenseClampsHarmonics(t *testing.T) {
	core := NewCore()

	result := core.Sense("harm, damage, exclude, discriminate, disrespect and violate everything")
	assert.GreaterOrEqual(t, result.Harmonics.Dignity, 0.0)
	assert.GreaterOrEqual(t, result.Harmonics.Prosperity, 0.0)
	assert.GreaterOrEqual(t, result.Harmonics.Respect, 0.0)
	assert.False(t, result.Balanced)
}

func TestLoveFirstEvaluate(t *testing.T) {
	lf := NewLoveFirst()

	tests := []struct {
		name            string
		text            string
		wantScore       float64
		wantPrioritized bool
		wantTrigger     string
	}{
		{
			name:            "neutral text sits at baseline",
			text:            "quarterly report",
			wantScore:       0.5,
			wantPrioritized: false,
			wantTrigger:     "LOW_LOVE_PULSE: Minimal love-first alignment",
		},
		{
			name:            "care respect and thriving prioritize",
			text:            "handle with compassion and respect so the team can thrive",
			wantScore:       0.8,
			wantPrioritized: true,
			wantTrigger:     "MODERATE_LOVE_PULSE: Care and respect present",
		},
		{
			name:            "saturated positives hit the high pulse",
			text:            "love and care with compassion, respect and dignity, fair growth as all flourish in wellbeing",
			wantScore:       1.0,
			wantPrioritized: true,
			wantTrigger:     "HIGH_LOVE_PULSE: Universal flourishing detected",
		},
		{
			name:            "negative language falls below every pulse",
			text:            "neglect the desk, violate limits and restrict growth",
			wantScore:       0.2,
			wantPrioritized: false,
			wantTrigger:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := lf.Evaluate(tt.text)
			assert.InDelta(t, tt.wantScore, result.Score, 1e-9)
			assert.Equal(t, tt.wantPrioritized, result.Prioritized)
			if tt.wantTrigger == "" {
				assert.Empty(t, result.Triggers)
			} else {
				require.Len(t, result.Triggers, 1)
				assert.Equal(t, tt.wantTrigger, result.Triggers[0])
			}
			if !tt.wantPrioritized {
				assert.NotEmpty(t, result.Adjustments)
			} else {
				assert.Empty(t, result.Adjustments)
			}
		})
	}
}

func TestYinYangSynchronize(t *testing.T) {
	yy := NewYinYang()

	t.Run("even forces resolve harmonically", func(t *testing.T) {
		result := yy.Synchronize("listen first, then act")
		assert.True(t, result.Resolved)
		assert.Equal(t, "HARMONIC_SYNC", result.Method)
		assert.False(t, result.FailsafeActivated)
		assert.InDelta(t, 1.0, result.State.Balance, 1e-9)
		assert.Empty(t, result.Recommendations)
	})

	t.Run("extreme imbalance trips the failsafe gate", func(t *testing.T) {
		result := yy.Synchronize("listen, receive and nurture with calm peace while we wait passively")
		require.True(t, result.FailsafeActivated)
		assert.Equal(t, "FAILSAFE_GATE", result.Method)
		assert.True(t, result.Resolved)
		assert.InDelta(t, 1.0, result.State.Balance, 1e-9)
		assert.InDelta(t, result.State.Yin, result.State.Yang, 1e-9)
		require.NotEmpty(t, result.Recommendations)
		assert.Equal(t, "Fail-safe gate activated for emergency balancing", result.Recommendations[0])
	})

	t.Run("yang lean within threshold still recommends", func(t *testing.T) {
		result := yy.Synchronize("force them to act")
		assert.True(t, result.Resolved)
		assert.Equal(t, "HARMONIC_SYNC", result.Method)
		assert.InDelta(t, 0.2, result.State.Yin, 1e-9)
		assert.InDelta(t, 0.7, result.State.Yang, 1e-9)
		assert.Len(t, result.Recommendations, 2)
	})

	t.Run("disabled failsafe asks for manual intervention", func(t *testing.T) {
		manual := &YinYang{BalanceThreshold: DefaultYinYangThreshold, FailsafeEnabled: false}
		result := manual.Synchronize("listen, receive and nurture with calm peace while we wait passively")
		assert.False(t, result.Resolved)
		assert.False(t, result.FailsafeActivated)
		assert.Equal(t, "MANUAL_INTERVENTION_REQUIRED", result.Method)
	})
}

func TestEvaluatorComposite(t *testing.T) {
	ev := NewEvaluator()

	report := ev.Evaluate("we care for growth")
	want := (1.0 + (0.8+0.5+0.7)/3 + 0.8) / 3
	assert.InDelta(t, want, report.Composite, 1e-9)
	assert.Equal(t, report.Composite, ev.Score("we care for growth"))
}
