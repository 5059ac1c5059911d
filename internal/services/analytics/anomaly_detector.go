package analytics

import (
	"fmt"
	"math"

	"AlphaCrew/internal/domain/models"
	"AlphaCrew/internal/services/features"
)

// HistorySource provides a producer's past signal scores.
type HistorySource interface {
	ScoreHistory(producer, excludeRequestID string) []float64
}

type DetectorConfig struct {
	DisagreementThreshold float64 // max |Δscore| tolerated between two confident signals
	MinConfidence         float64 // both signals need at least this confidence to disagree
	RangeK                float64 // band width in standard deviations
	MinHistory            int     // shorter histories skip the range check
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{DisagreementThreshold: 0.6, MinConfidence: 0.5, RangeK: 3, MinHistory: 10}
}

// AnomalyDetector flags disagreement between signals and values outside a
// producer's historical band. Its flags are advisory and never block the pipeline.
type AnomalyDetector struct {
	cfg     DetectorConfig
	history HistorySource
}

func NewAnomalyDetector(cfg DetectorConfig, history HistorySource) *AnomalyDetector {
	return &AnomalyDetector{cfg: cfg, history: history}
}

// Detect returns disagreement flags in pair order followed by range flags in set order.
// history may be nil, in which case only the disagreement check runs.
func (d *AnomalyDetector) Detect(requestID string, set *models.SignalSet) []models.AnomalyFlag {
	sigs := set.Signals()
	if len(sigs) == 0 {
		return nil
	}
	var flags []models.AnomalyFlag

	for i := 0; i < len(sigs); i++ {
		for j := i + 1; j < len(sigs); j++ {
			a, b := sigs[i], sigs[j]
			if !a.IsNumeric() || !b.IsNumeric() {
				continue
			}
			if a.Confidence < d.cfg.MinConfidence || b.Confidence < d.cfg.MinConfidence {
				continue
			}
			diff := math.Abs(a.Value.Score - b.Value.Score)
			if diff <= d.cfg.DisagreementThreshold {
				continue
			}
			flags = append(flags, models.AnomalyFlag{
				Producers: []string{a.Producer, b.Producer},
				Severity:  models.SeverityWarn,
				Reason:    models.ReasonDisagreement,
				Detail: fmt.Sprintf("%s=%.2f vs %s=%.2f, |diff| %.2f > %.2f",
					a.Producer, a.Value.Score, b.Producer, b.Value.Score, diff, d.cfg.DisagreementThreshold),
			})
		}
	}

	if d.history == nil {
		return flags
	}
	for _, s := range sigs {
		if !s.IsNumeric() {
			continue
		}
		hist := d.history.ScoreHistory(s.Producer, requestID)
		if len(hist) < d.cfg.MinHistory {
			continue
		}
		mean, sd := features.MeanStdDev(hist)
		if sd == 0 {
			continue
		}
		if !features.OutsideBand(s.Value.Score, mean, sd, d.cfg.RangeK) {
			continue
		}
		flags = append(flags, models.AnomalyFlag{
			Producers: []string{s.Producer},
			Severity:  models.SeverityCritical,
			Reason:    models.ReasonOutOfRange,
			Detail: fmt.Sprintf("%s=%.2f outside %.2f±%.1f·%.3f over %d samples",
				s.Producer, s.Value.Score, mean, d.cfg.RangeK, sd, len(hist)),
		})
	}
	return flags
}
