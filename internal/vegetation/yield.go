package vegetation

// MaxYield is the ceiling in tons per hectare for the assumed crop.
const MaxYield = 6.0

// EstimateYield scales MaxYield by canopy cover discounted by stressed area.
func EstimateYield(canopyPct, stressPct float64) float64 {
	health := (canopyPct / 100) * (1 - stressPct/100)
	return Round(health*MaxYield, 2)
}
