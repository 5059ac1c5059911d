package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"AlphaCrew/internal/domain/models"
	domsvc "AlphaCrew/internal/domain/service"
	applogger "AlphaCrew/pkg/logger"
)

const QualitativeName = "qualitative"

const moatPrompt = `You are an equity analyst assessing the durability of a company's competitive advantage.
Evaluate {{security_id}} as of {{as_of}}: brand power, network effects, switching costs, cost advantages and management quality.
Answer with a single JSON object and nothing else:
{"moat_score": <number from -1 (no moat, eroding) to 1 (wide, durable moat)>,
 "moat_rating": "Wide Moat" | "Narrow Moat" | "No Moat",
 "management_rating": "Strong" | "Adequate" | "Weak",
 "certainty": <number from 0 to 1>,
 "explanation": "<two or three sentences>"}`

type QualitativeConfig struct {
	MinConfidence float64
	MaxConfidence float64
}

func DefaultQualitativeConfig() QualitativeConfig {
	return QualitativeConfig{MinConfidence: 0.1, MaxConfidence: 0.9}
}

// QualitativeAgent asks the language model for a moat assessment.
type QualitativeAgent struct {
	cfg   QualitativeConfig
	model domsvc.LanguageModel
	l     *applogger.Logger
}

func NewQualitativeAgent(cfg QualitativeConfig, model domsvc.LanguageModel) *QualitativeAgent {
	if cfg.MaxConfidence <= 0 || cfg.MaxConfidence < cfg.MinConfidence {
		cfg = DefaultQualitativeConfig()
	}
	return &QualitativeAgent{cfg: cfg, model: model}
}

func (a *QualitativeAgent) SetLogger(l *applogger.Logger) { a.l = l }

func (a *QualitativeAgent) Name() string { return QualitativeName }

type moatAssessment struct {
	MoatScore        *float64 `json:"moat_score"`
	MoatRating       string   `json:"moat_rating"`
	ManagementRating string   `json:"management_rating"`
	Certainty        *float64 `json:"certainty"`
	Explanation      string   `json:"explanation"`
}

func (a *QualitativeAgent) ProduceSignal(ctx context.Context, req models.AnalysisRequest) (models.Signal, error) {
	out, err := a.model.Invoke(ctx, moatPrompt, map[string]string{
		"security_id": req.SecurityID,
		"as_of":       req.AsOf.Format("2006-01-02"),
	})
	if err != nil {
		if errors.Is(err, models.ErrModelRateLimited) || errors.Is(err, models.ErrModelUnavailable) {
			return models.Signal{}, fmt.Errorf("%w: %v", models.ErrAgentUnavailable, err)
		}
		return models.Signal{}, fmt.Errorf("%w: invoke model: %v", models.ErrAgentUnavailable, err)
	}

	m, err := parseAssessment(out)
	if err != nil {
		if a.l != nil {
			a.l.Warn("qualitative agent could not parse model output",
				applogger.String("security_id", req.SecurityID),
				applogger.Int("length", len(out)),
				applogger.Error(err),
			)
		}
		return models.Signal{}, fmt.Errorf("%w: %v", models.ErrInsufficientData, err)
	}

	certainty := *m.Certainty
	if certainty > 1 && certainty <= 100 {
		certainty /= 100 // percentages
	}
	confidence := models.Clamp(certainty, a.cfg.MinConfidence, a.cfg.MaxConfidence)

	summary := m.Explanation
	if m.MoatRating != "" {
		summary = m.MoatRating + ": " + summary
	}
	if m.ManagementRating != "" {
		summary += " Management: " + m.ManagementRating + "."
	}

	return models.Signal{
		Producer:   QualitativeName,
		Value:      models.NumericValue(*m.MoatScore, m.MoatRating),
		Confidence: confidence,
		Evidence: models.Evidence{
			Summary: summary,
			Inputs: map[string]float64{
				"moat_score": models.Clamp(*m.MoatScore, -1, 1),
				"certainty":  certainty,
			},
		},
	}, nil
}

// parseAssessment extracts the outermost JSON object from the model reply.
func parseAssessment(out string) (moatAssessment, error) {
	var m moatAssessment
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end <= start {
		return m, fmt.Errorf("no JSON object in model output")
	}
	if err := json.Unmarshal([]byte(out[start:end+1]), &m); err != nil {
		return m, fmt.Errorf("decode assessment: %w", err)
	}
	if m.MoatScore == nil {
		return m, fmt.Errorf("assessment has no moat_score")
	}
	if m.Certainty == nil {
		return m, fmt.Errorf("assessment has no certainty")
	}
	m.Explanation = strings.TrimSpace(m.Explanation)
	if m.Explanation == "" {
		return m, fmt.Errorf("assessment has an empty explanation")
	}
	return m, nil
}

var _ domsvc.SignalAgent = (*QualitativeAgent)(nil)
