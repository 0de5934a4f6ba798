package pipeline

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/katayori/internal/config"
	"github.com/hyperjump/katayori/internal/embedding"
	"github.com/hyperjump/katayori/internal/models"
	"github.com/hyperjump/katayori/internal/nlp"
	"github.com/hyperjump/katayori/internal/seat"
	"github.com/hyperjump/katayori/internal/storage"
)

// Experimenter runs the association test over stored entity scores: select
// the extreme names, fill the target templates, embed all four sentence
// groups, and measure effect size and p-value.
type Experimenter struct {
	storage         storage.Storage
	embedder        embedding.Embedder
	encoder         string
	templates       []string
	positiveSamples []string
	negativeSamples []string
	logger          *zap.Logger
}

// ExperimenterOption configures an Experimenter.
type ExperimenterOption func(*Experimenter)

// WithExperimentLogger sets a logger for experiment progress output.
func WithExperimentLogger(l *zap.Logger) ExperimenterOption {
	return func(e *Experimenter) { e.logger = l }
}

// NewExperimenter creates an experimenter. encoder is a short label for the
// embedding backend, stored with each run so results stay comparable.
func NewExperimenter(
	store storage.Storage,
	embedder embedding.Embedder,
	encoder string,
	cfg *config.ExperimentConfig,
	opts ...ExperimenterOption,
) *Experimenter {
	e := &Experimenter{
		storage:         store,
		embedder:        embedder,
		encoder:         encoder,
		templates:       cfg.TargetTemplates,
		positiveSamples: cfg.PositiveSamples,
		negativeSamples: cfg.NegativeSamples,
	}
	if e.templates == nil {
		e.templates = nlp.DefaultTargetTemplates
	}
	if e.positiveSamples == nil {
		e.positiveSamples = nlp.DefaultPositiveSamples
	}
	if e.negativeSamples == nil {
		e.negativeSamples = nlp.DefaultNegativeSamples
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one experiment and persists the result. The same request and
// seed over the same corpus state give the same outcome.
func (e *Experimenter) Run(ctx context.Context, req *models.ExperimentRequest) (*models.Experiment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	stats, err := e.storage.EntityStats(ctx, req.MinOccurrences)
	if err != nil {
		return nil, fmt.Errorf("entity stats: %w", err)
	}
	nlp.Rank(stats)
	positive, negative, err := nlp.SelectExtremes(stats, req.TopK)
	if err != nil {
		return nil, err
	}
	if e.logger != nil {
		e.logger.Debug("experiment targets selected",
			zap.Strings("positive", positive),
			zap.Strings("negative", negative))
	}

	xTexts, err := nlp.FillTemplates(positive, e.templates)
	if err != nil {
		return nil, err
	}
	yTexts, err := nlp.FillTemplates(negative, e.templates)
	if err != nil {
		return nil, err
	}

	x, err := e.embedGroup(ctx, xTexts)
	if err != nil {
		return nil, err
	}
	y, err := e.embedGroup(ctx, yTexts)
	if err != nil {
		return nil, err
	}
	a, err := e.embedGroup(ctx, e.positiveSamples)
	if err != nil {
		return nil, err
	}
	b, err := e.embedGroup(ctx, e.negativeSamples)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(req.Seed))
	result, err := seat.Run(x, y, a, b, req.NSamples, req.Parametric, rng)
	if err != nil {
		return nil, err
	}

	exp := &models.Experiment{
		ID:            uuid.New().String(),
		Encoder:       e.encoder,
		TopK:          req.TopK,
		NSamples:      req.NSamples,
		Parametric:    req.Parametric,
		Seed:          req.Seed,
		PositiveNames: positive,
		NegativeNames: negative,
		EffectSize:    result.EffectSize,
		PValue:        result.PValue,
		Permutations:  result.Permutations,
		Exhaustive:    result.Exhaustive,
	}
	if err := e.storage.SaveExperiment(ctx, exp); err != nil {
		return nil, fmt.Errorf("save experiment: %w", err)
	}
	if e.logger != nil {
		e.logger.Info("experiment complete",
			zap.String("id", exp.ID),
			zap.Float64("effect_size", exp.EffectSize),
			zap.Float64("p_value", exp.PValue),
			zap.Bool("exhaustive", exp.Exhaustive))
	}
	return exp, nil
}

func (e *Experimenter) embedGroup(ctx context.Context, texts []string) ([][]float64, error) {
	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d sentences: %w", len(texts), err)
	}
	return seat.Float64s(vecs), nil
}
