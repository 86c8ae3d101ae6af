package chat

import (
	"fmt"
	"strings"
)

// topic maps message keywords to advice. Quick topics are answered directly
// from the field context. The others only feed the timeout fallback.
type topic struct {
	name     string
	keywords []string
	quick    bool
	advice   func(c Context) string
}

// Evaluated in order; the first keyword hit wins.
var topics = []topic{
	{
		name:     "canopy",
		keywords: []string{"canopy", "cover"},
		quick:    true,
		advice:   canopyAdvice,
	},
	{
		name:     "stress",
		keywords: []string{"stress"},
		quick:    true,
		advice:   stressAdvice,
	},
	{
		name:     "yield",
		keywords: []string{"yield", "harvest"},
		quick:    true,
		advice:   yieldAdvice,
	},
	{
		name:     "fertilizer",
		keywords: []string{"fertilizer", "fertilize"},
		quick:    true,
		advice:   fertilizerAdvice,
	},
	{
		name:     "water",
		keywords: []string{"water", "irrigat"},
		advice:   static("Water early in the morning and check soil moisture before each irrigation."),
	},
	{
		name:     "pests",
		keywords: []string{"pest", "insect"},
		advice:   static("Scout the field weekly and treat pest hotspots early before they spread."),
	},
	{
		name:     "weeds",
		keywords: []string{"weed"},
		advice:   static("Spot-check for weeds and use selective herbicides or mulch where needed."),
	},
	{
		name:     "disease",
		keywords: []string{"disease"},
		advice:   static("Remove infected plants quickly and avoid overhead watering to limit disease spread."),
	},
	{
		name:     "soil",
		keywords: []string{"soil"},
		advice:   static("Test your soil each season and add organic matter to keep it productive."),
	},
	{
		name:     "improve",
		keywords: []string{"improve", "increase"},
		advice:   static("To improve yield, ensure adequate nitrogen, manage irrigation, monitor pests weekly and avoid soil compaction."),
	},
}

const genericAdvice = "Keep monitoring crop health with regular drone flights and act early on stressed areas."

func static(s string) func(Context) string {
	return func(Context) string { return s }
}

func matchTopic(normalized string) (topic, bool) {
	for _, t := range topics {
		for _, kw := range t.keywords {
			if strings.Contains(normalized, kw) {
				return t, true
			}
		}
	}
	return topic{}, false
}

// adviceFor is the one-line tip used when the model is too slow.
func adviceFor(normalized string, c Context) string {
	if t, ok := matchTopic(normalized); ok {
		return t.advice(c)
	}
	return genericAdvice
}

const noDataPrefix = "I don't have a drone analysis for your field yet, so here is general guidance. "

func canopyAdvice(c Context) string {
	if !c.HasData {
		return "Canopy cover shows how much of the field is covered by crops. High canopy means healthy vegetation, while low canopy can indicate stunted growth."
	}
	head := fmt.Sprintf("Your latest canopy cover is %.2f%%. ", c.CanopyCover)
	switch {
	case c.CanopyCover < 40:
		return head + "Coverage is low. Check planting density and look for early-stage stress."
	case c.CanopyCover > 70:
		return head + "The canopy is dense and healthy. Keep your current management practices."
	default:
		return head + "Coverage is moderate. Balanced fertilization and steady irrigation should help close the gaps."
	}
}

func stressAdvice(c Context) string {
	if !c.HasData {
		return "Crop stress refers to conditions that reduce crop health, usually water shortage, poor soil, pests or disease."
	}
	head := fmt.Sprintf("Your latest stress level is %.2f%%. ", c.StressPercentage)
	switch {
	case c.StressPercentage > 15:
		return head + "Stress is high. Likely causes are nutrient deficiency, water stress or pests, so inspect the affected areas soon."
	case c.StressPercentage > 5:
		return head + "Stress is moderate. Keep watering consistent and monitor nutrient balance."
	default:
		return head + "Stress is low. Keep monitoring weekly."
	}
}

func yieldAdvice(c Context) string {
	if !c.HasData {
		return "Yield estimate is the predicted crop production. It depends on canopy cover, stress, soil health and rainfall."
	}
	head := fmt.Sprintf("Your projected yield is %.2f tons/ha. ", c.YieldEstimate)
	switch {
	case c.YieldEstimate < 2:
		return head + "That is low. Improve fertilizer efficiency and check plant spacing and density."
	case c.YieldEstimate < 5:
		return head + "That is average. More uniform irrigation and better nutrient uptake can raise it."
	default:
		return head + "That is a strong projection. Start preparing for harvest requirements."
	}
}

func fertilizerAdvice(c Context) string {
	if !c.HasData {
		return "Base fertilizer decisions on a soil test. Nitrogen drives leaf growth and potassium improves stress tolerance."
	}
	head := fmt.Sprintf("Your greenness (EXG) is %.1f and leaf vigor (GLI) is %.3f. ", c.EXG, c.GLI)
	if c.EXG < 20 || c.GLI < 0.1 {
		return head + "Greenness or leaf vigor is low, so a nitrogen-rich fertilizer application is worth considering."
	}
	return head + "Both look adequate. Stay on your current fertilizer schedule and avoid excess nitrogen."
}
