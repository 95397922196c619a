package linker

import (
	"math"
	"sort"
	"strings"

	"github.com/kbatlas/linker/pkg/types"
)

// contextWeight scales the token-overlap signal against the length signal.
const contextWeight = 5.0

// regionBonusMarkers grant PER candidates a flat bonus when their info
// payload mentions the region of interest.
var regionBonusMarkers = []string{"Russia", "Ukraine"}

// Disambiguator scores and ranks surviving candidates for one mention.
// The model is deliberately crude: a length-proximity signal for every
// candidate plus a context-overlap signal for PER and ORG candidates.
type Disambiguator struct{}

// NewDisambiguator creates a Disambiguator.
func NewDisambiguator() *Disambiguator {
	return &Disambiguator{}
}

// Rank assigns each candidate a confidence normalized across the set and
// returns the candidates sorted by confidence descending. Ties keep the
// original retrieval order. A single candidate bypasses scoring and gets
// confidence 1.0.
func (d *Disambiguator) Rank(candidates []types.EntityRecord, nameLower string, cat types.Category, context string) []types.ScoredCandidate {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return []types.ScoredCandidate{{EntityRecord: candidates[0], Confidence: 1.0}}
	}

	scores := make([]float64, len(candidates))
	var sum float64
	for i, c := range candidates {
		score := editScore(c.Name, nameLower) + contextScore(c, cat, context)
		scores[i] = score
		sum += score
	}

	scored := make([]types.ScoredCandidate, len(candidates))
	for i, c := range candidates {
		confidence := 1.0 / float64(len(candidates))
		if sum > 0 {
			confidence = scores[i] / sum
		}
		scored[i] = types.ScoredCandidate{EntityRecord: c, Confidence: confidence}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Confidence > scored[j].Confidence
	})
	return scored
}

// editScore is a length-proximity signal: 1.0 when the candidate name and
// the mention have equal length, decaying hyperbolically with the length
// difference.
func editScore(candidateName, mentionName string) float64 {
	diff := math.Abs(float64(len([]rune(candidateName)) - len([]rune(mentionName))))
	return 1.0 / (diff + 1.0)
}

// contextScore is the overlap between the candidate's info payload and the
// mention's sentence context, for PER and ORG candidates only. PER
// candidates mentioning the region of interest get a flat bonus on top.
func contextScore(c types.EntityRecord, cat types.Category, context string) float64 {
	if cat != types.CategoryPER && cat != types.CategoryORG {
		return 0
	}

	score := contextWeight * tokenIoU(c.Info, context)
	if cat == types.CategoryPER {
		for _, marker := range regionBonusMarkers {
			if strings.Contains(c.Info, marker) {
				score += 1.0
				break
			}
		}
	}
	return score
}

// tokenIoU is the intersection-over-union of the whitespace-tokenized word
// sets of a and b, with 0/0 defined as 0.
func tokenIoU(a, b string) float64 {
	ta := strings.Fields(strings.ToLower(a))
	tb := strings.Fields(strings.ToLower(b))
	if len(ta) == 0 && len(tb) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		setB[t] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
