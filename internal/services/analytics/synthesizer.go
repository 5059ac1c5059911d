package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"AlphaCrew/internal/domain/models"
)

type SynthesisConfig struct {
	BuyThreshold    float64
	SellThreshold   float64
	CriticalPenalty float64 // fractional confidence cut per critical flag
	WarnPenalty     float64 // fractional confidence cut per warn flag
	MinConfidence   float64
	RationaleTopN   int
}

func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{
		BuyThreshold:    0.3,
		SellThreshold:   -0.3,
		CriticalPenalty: 0.5,
		WarnPenalty:     0.2,
		MinConfidence:   0.05,
		RationaleTopN:   2,
	}
}

// Synthesizer merges a signal set and its anomaly flags into one recommendation.
// It is a pure function of its inputs.
type Synthesizer struct {
	cfg SynthesisConfig
}

func NewSynthesizer(cfg SynthesisConfig) *Synthesizer {
	if cfg.RationaleTopN <= 0 {
		cfg.RationaleTopN = 2
	}
	return &Synthesizer{cfg: cfg}
}

type weighted struct {
	sig    models.Signal
	weight float64
}

func (s *Synthesizer) Synthesize(set *models.SignalSet, flags []models.AnomalyFlag) (models.Recommendation, error) {
	var numeric []models.Signal
	total := 0.0
	for _, sig := range set.Signals() {
		if !sig.IsNumeric() {
			continue
		}
		numeric = append(numeric, sig)
		total += sig.Confidence
	}
	if len(numeric) == 0 {
		return models.Recommendation{}, fmt.Errorf("%w: no numeric signals to weigh", models.ErrInconsistentSignal)
	}
	if total <= 0 {
		return models.Recommendation{}, fmt.Errorf("%w: all signals report zero confidence", models.ErrInconsistentSignal)
	}

	ranked := make([]weighted, 0, len(numeric))
	score, conf := 0.0, 0.0
	for _, sig := range numeric {
		w := sig.Confidence / total
		ranked = append(ranked, weighted{sig: sig, weight: w})
		score += w * sig.Value.Score
		conf += w * sig.Confidence
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].sig.Producer < ranked[j].sig.Producer
	})

	for _, f := range flags {
		switch f.Severity {
		case models.SeverityCritical:
			conf *= 1 - s.cfg.CriticalPenalty
		case models.SeverityWarn:
			conf *= 1 - s.cfg.WarnPenalty
		}
	}
	conf = math.Max(conf, s.cfg.MinConfidence)
	conf = math.Min(conf, 1)

	rec := models.Recommendation{
		Action:     s.action(score),
		Confidence: conf,
		Score:      score,
		Importance: make([]models.FeatureWeight, len(ranked)),
	}
	for i, r := range ranked {
		rec.Importance[i] = models.FeatureWeight{Producer: r.sig.Producer, Weight: r.weight}
	}
	rec.Rationale = s.rationale(ranked, rec, flags)
	return rec, nil
}

func (s *Synthesizer) action(score float64) models.Action {
	switch {
	case score >= s.cfg.BuyThreshold:
		return models.ActionBuy
	case score <= s.cfg.SellThreshold:
		return models.ActionSell
	default:
		return models.ActionHold
	}
}

func (s *Synthesizer) rationale(ranked []weighted, rec models.Recommendation, flags []models.AnomalyFlag) string {
	var b strings.Builder
	b.WriteString("Top signals: ")
	n := s.cfg.RationaleTopN
	if n > len(ranked) {
		n = len(ranked)
	}
	for i := 0; i < n; i++ {
		r := ranked[i]
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%d) %s (weight %.2f, score %+.2f): %s", i+1, r.sig.Producer, r.weight, r.sig.Value.Score, r.sig.Evidence.Summary)
	}
	fmt.Fprintf(&b, ". Aggregate score %+.2f -> %s (confidence %.2f).", rec.Score, strings.ToUpper(string(rec.Action)), rec.Confidence)
	if len(flags) > 0 {
		b.WriteString(" Anomalies: ")
		for i, f := range flags {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%s %s (%s)", f.Severity, f.Reason, strings.Join(f.Producers, ", "))
		}
		b.WriteString(".")
	}
	return b.String()
}
