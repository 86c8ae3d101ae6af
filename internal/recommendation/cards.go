package recommendation

// Card templates. Rules reference these by value and Evaluate hands out copies.
var (
	lowCanopy = Card{
		Title:    "Low Canopy Coverage",
		Severity: SeverityWarning,
		Message:  "The canopy coverage is low. Consider improving planting density or checking for early-stage stress.",
		Actions: []string{
			"Add organic matter to improve soil health",
			"Ensure seeds are evenly spaced",
			"Increase irrigation if the soil is dry",
		},
	}
	healthyCanopy = Card{
		Title:    "Healthy Canopy Coverage",
		Severity: SeveritySuccess,
		Message:  "The canopy is dense and healthy. Maintain current farm management practices.",
		Actions: []string{
			"Continue regular monitoring",
			"Ensure balanced fertilization to avoid overgrowth",
		},
	}

	highStress = Card{
		Title:    "High Vegetation Stress",
		Severity: SeverityDanger,
		Message:  "Vegetation stress is high. Immediate action is needed.",
		Actions: []string{
			"Check for pests or diseases",
			"Ensure proper irrigation",
			"Consider nitrogen-rich fertilizer",
		},
	}
	moderateStress = Card{
		Title:    "Moderate Vegetation Stress",
		Severity: SeverityWarning,
		Message:  "Some stress detected. Monitor conditions and adjust management where necessary.",
		Actions: []string{
			"Inspect soil moisture levels",
			"Evaluate weed competition",
		},
	}

	lowVARI = Card{
		Title:    "Low Vegetation Index (VARI)",
		Severity: SeverityWarning,
		Message:  "Vegetation index is low. Growth may be limited.",
		Actions: []string{
			"Increase nutrient application",
			"Check water distribution",
			"Verify soil pH levels",
		},
	}
	goodVARI = Card{
		Title:    "Good Vegetation Health",
		Severity: SeveritySuccess,
		Message:  "The vegetation index suggests healthy crop growth.",
		Actions: []string{
			"Maintain current practices",
			"Monitor weekly for changes",
		},
	}

	lowEXG = Card{
		Title:    "Low Greenness (EXG)",
		Severity: SeverityWarning,
		Message:  "Crops show low greenness. Chlorophyll content may be low.",
		Actions: []string{
			"Apply nitrogen fertilizer",
			"Check irrigation frequency",
			"Inspect for nutrient deficiency symptoms",
		},
	}
	highEXG = Card{
		Title:    "High Greenness Levels",
		Severity: SeveritySuccess,
		Message:  "Your crops display strong green coloration, a good sign of health.",
		Actions: []string{
			"Maintain fertilizer schedule",
			"Monitor for excessive nitrogen use",
		},
	}

	weakGLI = Card{
		Title:    "Weak Leaf Vigor",
		Severity: SeverityWarning,
		Message:  "Leaves show low vigor. Growth may be slowed.",
		Actions: []string{
			"Check for pests on leaf surfaces",
			"Ensure adequate sunlight exposure",
			"Increase organic compost application",
		},
	}
	strongGLI = Card{
		Title:    "Strong Leaf Vigor",
		Severity: SeveritySuccess,
		Message:  "Leaf vigor looks good. Plants are actively growing.",
		Actions: []string{
			"Continue current management",
			"Watch for seasonal stress changes",
		},
	}

	lowYield = Card{
		Title:    "Low Yield Projection",
		Severity: SeverityDanger,
		Message:  "Expected yield is low. Production may be affected.",
		Actions: []string{
			"Increase fertilizer efficiency (NPK)",
			"Check plant spacing & density",
			"Inspect for early disease signs",
		},
	}
	moderateYield = Card{
		Title:    "Moderate Yield Projection",
		Severity: SeverityWarning,
		Message:  "Yield is average. Improvements are possible.",
		Actions: []string{
			"Improve irrigation uniformity",
			"Monitor nutrient uptake",
		},
	}
	highYield = Card{
		Title:    "High Yield Projection",
		Severity: SeveritySuccess,
		Message:  "Expected yield is high. Great performance!",
		Actions: []string{
			"Maintain current care",
			"Prepare for upcoming harvest requirements",
		},
	}

	weedPresence = Card{
		Title:    "Possible Weed Presence",
		Severity: SeverityWarning,
		Message:  "Patterns suggest weeds may be present in the field.",
		Actions: []string{
			"Conduct manual spot checks",
			"Use selective herbicides where needed",
			"Mulch to suppress future weed growth",
		},
	}

	overallHealthy = Card{
		Title:    "Overall Crop Condition: Healthy",
		Severity: SeveritySuccess,
		Message:  "Most vegetation indicators show healthy crop performance.",
		Actions: []string{
			"Maintain your current field management",
			"Monitor stress indicators weekly",
		},
	}
	overallAttention = Card{
		Title:    "Overall Crop Condition: Needs Attention",
		Severity: SeverityWarning,
		Message:  "Multiple indicators suggest your crops require intervention.",
		Actions: []string{
			"Review irrigation schedule",
			"Carry out a field inspection",
			"Check for pests, diseases, and nutrient deficiency",
		},
	}
)
