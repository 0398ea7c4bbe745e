// Package matching attributes the authors of a publication to researchers on
// the roster.
//
// The pipeline runs strictly forward: extract a DOI from the publication
// reference, resolve registry metadata, score every (author, researcher)
// pair and aggregate the scores into at most one decision per author. Bad
// input and registry failures are reported as a publication status, never as
// an error.
package matching

import (
	"errors"
	"fmt"
	"math"

	"github.com/helixir/author-matching-service/internal/domain"
)

// tierTolerance absorbs float error in weighted sums that should land exactly
// on a tier boundary (0.5*x + 0.3*y + 0.2*z often yields 0.7999999999).
const tierTolerance = 1e-9

// Config holds every threshold and weight used by the scorer and aggregator.
type Config struct {
	// FuzzyThreshold is the minimum fuzzy name score a best candidate needs.
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`

	WeightFuzzy       float64 `mapstructure:"weight_fuzzy"`
	WeightAffiliation float64 `mapstructure:"weight_affiliation"`
	WeightCoauthor    float64 `mapstructure:"weight_coauthor"`

	AutoAssignThreshold        float64 `mapstructure:"auto_assign_threshold"`
	AutoAssignWithLogThreshold float64 `mapstructure:"auto_assign_with_log_threshold"`
	ManualReviewThreshold      float64 `mapstructure:"manual_review_threshold"`

	// IdentifierNewConfidence is assigned to authors whose ORCID is not on file.
	IdentifierNewConfidence float64 `mapstructure:"identifier_new_confidence"`

	AffiliationMatchScore float64 `mapstructure:"affiliation_match_score"`
	CoauthorStrongScore   float64 `mapstructure:"coauthor_strong_score"`
	CoauthorWeakScore     float64 `mapstructure:"coauthor_weak_score"`
	// NeutralScore is used whenever corroborating data is missing.
	NeutralScore float64 `mapstructure:"neutral_score"`

	// InstitutionKeywords identify the home institution in affiliation strings.
	// They are compared after name normalization.
	InstitutionKeywords []string `mapstructure:"institution_keywords"`

	// Concurrency bounds the goroutines of a BatchRunner.
	Concurrency int `mapstructure:"concurrency"`
}

// DefaultConfig returns the production thresholds and weights.
func DefaultConfig() Config {
	return Config{
		FuzzyThreshold:             0.70,
		WeightFuzzy:                0.5,
		WeightAffiliation:          0.3,
		WeightCoauthor:             0.2,
		AutoAssignThreshold:        0.95,
		AutoAssignWithLogThreshold: 0.80,
		ManualReviewThreshold:      0.65,
		IdentifierNewConfidence:    0.95,
		AffiliationMatchScore:      0.95,
		CoauthorStrongScore:        0.9,
		CoauthorWeakScore:          0.7,
		NeutralScore:               0.5,
		Concurrency:                4,
	}
}

// Validate checks that weights sum to one and thresholds are ordered.
func (c Config) Validate() error {
	var errs []error

	bounded := []struct {
		name  string
		value float64
	}{
		{"fuzzy_threshold", c.FuzzyThreshold},
		{"weight_fuzzy", c.WeightFuzzy},
		{"weight_affiliation", c.WeightAffiliation},
		{"weight_coauthor", c.WeightCoauthor},
		{"auto_assign_threshold", c.AutoAssignThreshold},
		{"auto_assign_with_log_threshold", c.AutoAssignWithLogThreshold},
		{"manual_review_threshold", c.ManualReviewThreshold},
		{"identifier_new_confidence", c.IdentifierNewConfidence},
		{"affiliation_match_score", c.AffiliationMatchScore},
		{"coauthor_strong_score", c.CoauthorStrongScore},
		{"coauthor_weak_score", c.CoauthorWeakScore},
		{"neutral_score", c.NeutralScore},
	}
	for _, b := range bounded {
		if b.value < 0 || b.value > 1 || math.IsNaN(b.value) {
			errs = append(errs, domain.NewValidationError(b.name, fmt.Sprintf("must be within [0,1], got %v", b.value)))
		}
	}

	if sum := c.WeightFuzzy + c.WeightAffiliation + c.WeightCoauthor; math.Abs(sum-1) > 1e-6 {
		errs = append(errs, domain.NewValidationError("weights", fmt.Sprintf("must sum to 1, got %v", sum)))
	}
	if !(c.ManualReviewThreshold < c.AutoAssignWithLogThreshold && c.AutoAssignWithLogThreshold < c.AutoAssignThreshold) {
		errs = append(errs, domain.NewValidationError("thresholds",
			"must satisfy manual_review < auto_assign_with_log < auto_assign"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, domain.NewValidationError("concurrency", "must be at least 1"))
	}

	return errors.Join(errs...)
}

// Tier maps a final confidence to its action tier. It is a pure function of
// confidence and the configured thresholds.
func (c Config) Tier(confidence float64) domain.ActionTier {
	switch {
	case confidence+tierTolerance >= c.AutoAssignThreshold:
		return domain.ActionTierAutoAssign
	case confidence+tierTolerance >= c.AutoAssignWithLogThreshold:
		return domain.ActionTierAutoAssignWithLog
	case confidence+tierTolerance >= c.ManualReviewThreshold:
		return domain.ActionTierManualReview
	default:
		return domain.ActionTierSkip
	}
}

// weighted combines the three corroborated signals into a final confidence.
func (c Config) weighted(s domain.Signals) float64 {
	return clip01(c.WeightFuzzy*s.FuzzyName + c.WeightAffiliation*s.Affiliation + c.WeightCoauthor*s.Coauthor)
}

func clip01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
