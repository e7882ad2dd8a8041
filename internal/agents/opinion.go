// Opinion model: how contact between agents moves inclination.
package agents

import "math"

// Age bands for susceptibility to influence.
const (
	YouthAge = 18 // Below this an agent is more easily swayed
	ElderAge = 50 // Above this an agent is harder to sway

	youthSusceptibility = 1.25
	elderSusceptibility = 0.75
)

// OpinionParams holds the tunables of the opinion model.
type OpinionParams struct {
	Proximity         float64 // Fraction of the inclination gap absorbed per contact
	InfluencerBoost   float64 // Extra weight of an influencer source, as a fraction
	InfluencerChanges bool    // Influencers absorb ideas from the people they meet
}

// Influence returns the inclination change recipient would take from source.
// The result is rounded half to even.
func Influence(recipient, source *Agent, p OpinionParams) int {
	diff := float64(source.Inclination - recipient.Inclination)
	delta := diff * p.Proximity
	if source.Influencer {
		delta *= 1 + p.InfluencerBoost
	}
	switch {
	case recipient.Age < YouthAge:
		delta *= youthSusceptibility
	case recipient.Age > ElderAge:
		delta *= elderSusceptibility
	}
	return int(math.RoundToEven(delta))
}

// ConsumeIdeas moves a's inclination toward source and reclassifies a.
// Between two ordinary persons this path is never taken by the tick; it is
// kept callable for experiments that want symmetric diffusion.
func (a *Agent) ConsumeIdeas(source *Agent, p OpinionParams) {
	delta := Influence(a, source, p)
	a.Inclination = Clamp(a.Inclination+delta, MinInclination, MaxInclination)
	a.UpdateParty()
}

// ShareIdeas offers a's opinion to target. Only influencers listen, and only
// when InfluencerChanges is set. It reports whether target changed.
func (a *Agent) ShareIdeas(target *Agent, p OpinionParams) bool {
	if !p.InfluencerChanges || target.Kind != KindInfluencer || target == a {
		return false
	}
	before := target.Inclination
	target.ConsumeIdeas(a, p)
	return target.Inclination != before
}
