package valueobject

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileRate(t *testing.T) {
	tests := []struct {
		name    string
		nominal string
		home    string
		foreign string
		keep    bool
	}{
		{name: "nominal rate already reconciles", nominal: "0.8", home: "80.00", foreign: "100.00", keep: true},
		{name: "nominal rate slightly low is raised", nominal: "0.80005", home: "80.01", foreign: "100.00"},
		{name: "nominal rate slightly high is lowered", nominal: "0.80008", home: "80.00", foreign: "100.00"},
		{name: "negative amounts reconcile like positive ones", nominal: "1.25", home: "-12.50", foreign: "-10.00", keep: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nominal, home, foreign := dec(tt.nominal), dec(tt.home), dec(tt.foreign)

			rate, err := ReconcileRate(nominal, home, foreign, 2)
			require.NoError(t, err)
			assert.True(t, rate.Mul(foreign).Round(2).Equal(home), "rate %s does not map %s onto %s", rate, foreign, home)
			if tt.keep {
				assert.True(t, rate.Equal(nominal))
			} else {
				assert.False(t, rate.Equal(nominal))
			}
		})
	}
}

func TestReconcileRate_Infeasible(t *testing.T) {
	tests := []struct {
		name    string
		nominal string
		home    string
		foreign string
	}{
		{name: "amounts far from the nominal conversion", nominal: "1.25", home: "130.00", foreign: "100.00"},
		{name: "two units apart", nominal: "0.8", home: "80.02", foreign: "100.00"},
		{name: "zero foreign amount", nominal: "1.1", home: "5.00", foreign: "0"},
		{name: "zero home amount", nominal: "1.1", home: "0", foreign: "5.00"},
		{name: "opposite signs", nominal: "1.1", home: "-5.50", foreign: "5.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReconcileRate(dec(tt.nominal), dec(tt.home), dec(tt.foreign), 2)
			assert.ErrorIs(t, err, ErrRateInfeasible)
		})
	}
}

func TestReconcileInterval(t *testing.T) {
	interval, err := ReconcileInterval(dec("80.00"), dec("100.00"), 2)
	require.NoError(t, err)

	assert.True(t, interval.Low.LessThan(dec("0.8")))
	assert.True(t, interval.High.GreaterThan(dec("0.8")))
	assert.True(t, interval.Low.Mul(dec("100.00")).Round(2).Equal(dec("80.00")))
	assert.True(t, interval.High.Mul(dec("100.00")).Round(2).Equal(dec("80.00")))
	assert.False(t, interval.Contains(dec("0.80006")))
}

func TestReconcileRate_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(2024, 11))

	for i := 0; i < 1000; i++ {
		rate := decimal.NewFromFloat(0.5 + rng.Float64()*1.5).Round(6)
		start := decimal.NewFromInt(int64(100 + rng.IntN(500_000))).Shift(-2)

		home := rate.Mul(start).Round(2)
		foreign := home.Div(rate).Round(2)

		got, err := ReconcileRate(rate, home, foreign, 2)
		require.NoError(t, err, "iteration %d: rate %s home %s foreign %s", i, rate, home, foreign)
		assert.True(t, got.Mul(foreign).Round(2).Equal(home),
			"iteration %d: %s x %s != %s", i, got, foreign, home)
	}
}
