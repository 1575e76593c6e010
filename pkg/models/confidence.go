package models

import (
	"fmt"
	"strings"
)

// Confidence is the evidence-strength classification attached to an analysis.
// Exactly three tiers exist per scheme, ordered strongest to weakest.
type Confidence string

// Tier pairs a confidence label with the evidentiary criteria the model is
// instructed to apply when assigning it.
type Tier struct {
	Label    string
	Criteria string
}

// ConfidenceScheme is a named three-tier confidence vocabulary. The tier
// count and ordinal meaning are fixed; the labels are configuration because
// deployments have used both grading vocabularies below.
type ConfidenceScheme struct {
	Name  string
	Tiers [3]Tier
}

const (
	SchemeHighModerateLow = "high-moderate-low"
	SchemeGreenYellowRed  = "green-yellow-red"
)

var highModerateLow = ConfidenceScheme{
	Name: SchemeHighModerateLow,
	Tiers: [3]Tier{
		{
			Label:    "HIGH",
			Criteria: "If the research on the topic has a well-conducted, randomized study showing a statistically significant positive effect on at least one outcome measure (e.g., state test or national standardized test) analyzed at the proper level of clustering (class/school or student) with a multi-site sample of at least 350 participants. Strong evidence from at least one well-designed and well-implemented experimental study.",
		},
		{
			Label:    "MODERATE",
			Criteria: "If it meets all standards for the strongest tier stated above, except that instead of using a randomized design, qualifying studies are prospective quasi-experiments (i.e., matched studies). Quasi-experimental studies (e.g., Regression Discontinuity Design) are those in which students have not been randomly assigned to treatment or control groups, but researchers are using statistical matching methods that allow them to speak with confidence about the likelihood that an intervention causes an outcome.",
		},
		{
			Label:    "LOW",
			Criteria: "The topic has a study that would have qualified for a stronger tier but did not because it failed to account for clustering (but did obtain significantly positive outcomes at the student level) or did not meet the sample size requirements. Post-hoc or retrospective studies may also qualify.",
		},
	},
}

var greenYellowRed = ConfidenceScheme{
	Name: SchemeGreenYellowRed,
	Tiers: [3]Tier{
		{Label: "GREEN", Criteria: highModerateLow.Tiers[0].Criteria},
		{Label: "YELLOW", Criteria: highModerateLow.Tiers[1].Criteria},
		{Label: "RED", Criteria: highModerateLow.Tiers[2].Criteria},
	},
}

// SchemeByName returns the confidence scheme for a configured name.
func SchemeByName(name string) (ConfidenceScheme, error) {
	switch name {
	case SchemeHighModerateLow, "":
		return highModerateLow, nil
	case SchemeGreenYellowRed:
		return greenYellowRed, nil
	default:
		return ConfidenceScheme{}, fmt.Errorf("unknown confidence scheme %q: must be %s or %s",
			name, SchemeHighModerateLow, SchemeGreenYellowRed)
	}
}

// Normalize maps a raw model token onto one of the scheme's tiers,
// tolerating case drift and surrounding whitespace. An unrecognized token
// returns ok=false; it is never coerced to a default tier.
func (s ConfidenceScheme) Normalize(token string) (Confidence, bool) {
	cleaned := strings.TrimSpace(token)
	for _, tier := range s.Tiers {
		if strings.EqualFold(cleaned, tier.Label) {
			return Confidence(tier.Label), true
		}
	}
	return "", false
}

// Labels returns the three tier labels, strongest first.
func (s ConfidenceScheme) Labels() [3]string {
	return [3]string{s.Tiers[0].Label, s.Tiers[1].Label, s.Tiers[2].Label}
}

// CriteriaText renders the tier criteria block embedded in the analysis
// prompt, one line per tier.
func (s ConfidenceScheme) CriteriaText() string {
	var b strings.Builder
	for i, tier := range s.Tiers {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(tier.Label)
		b.WriteString(" - ")
		b.WriteString(tier.Criteria)
	}
	return b.String()
}
