package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"rentmatch/internal/model"
	"rentmatch/internal/utils"
)

const (
	// DefaultScore is used when no preference produced a scoring factor.
	DefaultScore = 70
	// MaxExplanations caps the explanations attached to a match.
	MaxExplanations = 3

	// DefaultNetworkBoost multiplies the score of network-verified listings.
	DefaultNetworkBoost = 1.1
)

// Sub-scores, on a 0-100 scale
const (
	bedroomExactScore   = 100
	bedroomNearScore    = 80
	bedroomFarScore     = 60
	locationMatchScore  = 100
	locationMissScore   = 70
	availableNowScore   = 100
	availableLaterScore = 85
)

// Explanation texts
const (
	ExplainBudgetExact  = "Matches your budget exactly"
	ExplainStudio       = "Studio layout as requested"
	ExplainPetFriendly  = "Pet-friendly"
	ExplainAvailableNow = "Available now for your move-in"
	ExplainVerified     = "Verified network property"
)

// Weights are the factor weights of the match scorer
type Weights struct {
	Budget       float64
	Bedrooms     float64
	Location     float64
	Availability float64
}

// DefaultWeights returns the 0.4 / 0.3 / 0.2 / 0.1 split
func DefaultWeights() Weights {
	return Weights{Budget: 0.4, Bedrooms: 0.3, Location: 0.2, Availability: 0.1}
}

// Ranker scores listings against a preference set and explains the scores
type Ranker struct {
	weights      Weights
	networkBoost float64
}

// NewRanker creates a new ranker with specified weights
func NewRanker(weights Weights, networkBoost float64) *Ranker {
	if networkBoost <= 0 {
		networkBoost = DefaultNetworkBoost
	}
	return &Ranker{
		weights:      weights,
		networkBoost: networkBoost,
	}
}

// NewDefaultRanker creates a ranker with the default weights and boost
func NewDefaultRanker() *Ranker {
	return NewRanker(DefaultWeights(), DefaultNetworkBoost)
}

// evaluation holds the per-factor presence tests shared by Score and Explain,
// so an explanation can only cite a factor the score used.
type evaluation struct {
	hasBudget   bool
	rent        float64
	budget      float64
	budgetScore float64

	hasBedrooms  bool
	bedrooms     int
	desired      int
	bedroomScore float64

	hasLocation     bool
	location        string
	locationMatched bool

	hasAvailability bool
	availableNow    bool
}

func evaluate(listing model.Listing, prefs model.PreferenceSet) evaluation {
	var ev evaluation

	budget, budgetOK := utils.ParseMoney(prefs.Budget)
	rent, rentOK := utils.ParseMoney(string(listing.Rent))
	// A zero budget has no relative difference to measure against.
	if budgetOK && rentOK && budget > 0 {
		ev.hasBudget = true
		ev.rent = rent
		ev.budget = budget
		relativeDiff := math.Abs(rent-budget) / budget
		ev.budgetScore = math.Max(0, 100-relativeDiff*100)
	}

	if desired, atLeast, ok := utils.ParseCount(prefs.DesiredBedroomCount); ok && listing.Bedrooms != nil {
		ev.hasBedrooms = true
		ev.bedrooms = *listing.Bedrooms
		ev.desired = desired
		ev.bedroomScore = bedroomScore(ev.bedrooms, desired, atLeast)
	}

	if loc := strings.TrimSpace(prefs.Location); loc != "" {
		ev.hasLocation = true
		ev.location = loc
		ev.locationMatched = strings.Contains(strings.ToLower(fullAddress(listing)), strings.ToLower(loc))
	}

	if strings.TrimSpace(prefs.MoveInTimeframe) != "" {
		ev.hasAvailability = true
		ev.availableNow = strings.Contains(strings.ToLower(listing.Availability), "now")
	}

	return ev
}

// bedroomScore is 100 for an exact match (or any count meeting an "N+"
// request), 80 when off by one and 60 otherwise.
func bedroomScore(have, want int, atLeast bool) float64 {
	if atLeast && have >= want {
		return bedroomExactScore
	}
	switch diff := have - want; {
	case diff == 0:
		return bedroomExactScore
	case diff == 1 || diff == -1:
		return bedroomNearScore
	default:
		return bedroomFarScore
	}
}

func fullAddress(l model.Listing) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.Address, l.City, l.State} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Score returns the 0-100 compatibility score of listing for prefs
func (r *Ranker) Score(listing model.Listing, prefs model.PreferenceSet) int {
	return r.Breakdown(listing, prefs).FinalScore
}

// Breakdown computes the score and reports every evaluated sub-score.
//
// The weighted sum is divided by the number of evaluated factors, not by the
// sum of their weights, so partial preference sets are not a strict weighted
// average and often clamp at 100. Keep this unless the product owners agree
// to change the scale.
func (r *Ranker) Breakdown(listing model.Listing, prefs model.PreferenceSet) model.ScoreBreakdown {
	ev := evaluate(listing, prefs)
	b := model.ScoreBreakdown{Multiplier: 1.0}

	add := func(dst **float64, score, weight float64) {
		s := score
		*dst = &s
		b.WeightedSum += score * weight
		b.FactorCount++
	}

	if ev.hasBudget {
		add(&b.Budget, ev.budgetScore, r.weights.Budget)
	}
	if ev.hasBedrooms {
		add(&b.Bedrooms, ev.bedroomScore, r.weights.Bedrooms)
	}
	if ev.hasLocation {
		score := float64(locationMissScore)
		if ev.locationMatched {
			score = locationMatchScore
		}
		add(&b.Location, score, r.weights.Location)
	}
	if ev.hasAvailability {
		score := float64(availableLaterScore)
		if ev.availableNow {
			score = availableNowScore
		}
		add(&b.Availability, score, r.weights.Availability)
	}

	base := float64(DefaultScore)
	if b.FactorCount > 0 {
		base = (b.WeightedSum / float64(b.FactorCount)) * 100
	}

	if listing.IsNetworkVerified {
		b.Multiplier = r.networkBoost
	}

	final := base * b.Multiplier
	if math.IsNaN(final) {
		final = DefaultScore
	}
	b.FinalScore = int(math.Round(math.Max(0, math.Min(100, final))))
	return b
}

// Explain returns up to three reasons in fixed priority order:
// budget, bedrooms, pets, availability, location, network.
func (r *Ranker) Explain(listing model.Listing, prefs model.PreferenceSet) []string {
	ev := evaluate(listing, prefs)
	reasons := make([]string, 0, 6)

	if ev.hasBudget {
		reasons = append(reasons, budgetExplanation(ev.rent, ev.budget))
	}

	if ev.hasBedrooms {
		switch {
		case ev.bedrooms == ev.desired || (ev.bedroomScore == bedroomExactScore && ev.bedrooms > ev.desired):
			reasons = append(reasons, bedroomMatchExplanation(ev.bedrooms))
		case ev.bedrooms > ev.desired:
			extra := ev.bedrooms - ev.desired
			reasons = append(reasons, fmt.Sprintf("%d extra %s", extra, plural(extra, "bedroom")))
		}
	}

	if prefs.HasPets != nil && *prefs.HasPets && utils.IsPetFriendly(listing.Amenities) {
		reasons = append(reasons, ExplainPetFriendly)
	}

	if ev.hasAvailability && ev.availableNow {
		reasons = append(reasons, ExplainAvailableNow)
	}

	if ev.hasLocation && ev.locationMatched {
		reasons = append(reasons, "Located in "+ev.location)
	}

	if listing.IsNetworkVerified {
		reasons = append(reasons, ExplainVerified)
	}

	if len(reasons) > MaxExplanations {
		reasons = reasons[:MaxExplanations]
	}
	return reasons
}

// Match scores and explains one listing
func (r *Ranker) Match(listing model.Listing, prefs model.PreferenceSet) model.MatchResult {
	return model.MatchResult{
		Score:        r.Score(listing, prefs),
		Explanations: r.Explain(listing, prefs),
	}
}

// RankResults scores listings and sorts them by score descending. Ties keep
// their input order.
func (r *Ranker) RankResults(listings []model.Listing, prefs model.PreferenceSet) []model.ListingSearchResult {
	results := make([]model.ListingSearchResult, 0, len(listings))

	for _, listing := range listings {
		m := r.Match(listing, prefs)
		results = append(results, model.ListingSearchResult{
			Listing:      listing,
			Score:        m.Score,
			Explanations: m.Explanations,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}

func budgetExplanation(rent, budget float64) string {
	diff := budget - rent
	switch {
	case math.Round(diff) == 0:
		return ExplainBudgetExact
	case diff > 0:
		return fmt.Sprintf("%s under your budget", utils.FormatMoney(diff))
	default:
		return fmt.Sprintf("%s over your budget", utils.FormatMoney(-diff))
	}
}

func bedroomMatchExplanation(bedrooms int) string {
	if bedrooms == 0 {
		return ExplainStudio
	}
	return fmt.Sprintf("%d %s as requested", bedrooms, plural(bedrooms, "bedroom"))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
