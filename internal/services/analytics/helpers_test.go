package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"AlphaCrew/internal/domain/models"
)

func sig(producer string, score, conf float64, summary string) models.Signal {
	return models.Signal{
		Producer:   producer,
		Value:      models.NumericValue(score, ""),
		Confidence: conf,
		Evidence:   models.Evidence{Summary: summary},
	}
}

func setOf(t *testing.T, sigs ...models.Signal) *models.SignalSet {
	t.Helper()
	set := models.NewSignalSet()
	for _, s := range sigs {
		require.NoError(t, set.Add(s))
	}
	return set
}

type staticHistory map[string][]float64

func (h staticHistory) ScoreHistory(producer, _ string) []float64 { return h[producer] }
