package vegetation

// Result pairs one analyzed image's indices with its yield estimate.
type Result struct {
	Indices Indices
	Yield   float64
}

// Summary is a session-level aggregate. All metric pointers are nil when
// Count is zero so that "no data" never reads as all zeros.
type Summary struct {
	Count            int      `json:"num_images_processed"`
	CanopyCover      *float64 `json:"canopy_cover"`
	StressPercentage *float64 `json:"stress_percentage"`
	YieldEstimate    *float64 `json:"yield_estimate"`
	VARI             *float64 `json:"vari"`
	GLI              *float64 `json:"gli"`
	EXG              *float64 `json:"exg"`
}

func (s Summary) HasData() bool { return s.Count > 0 }

// Aggregate returns the arithmetic mean of every metric over results.
func Aggregate(results []Result) Summary {
	if len(results) == 0 {
		return Summary{}
	}

	var canopy, stress, yield, vari, gli, exg float64
	for _, r := range results {
		canopy += r.Indices.CanopyPct
		stress += r.Indices.StressPct
		yield += r.Yield
		vari += r.Indices.VARI
		gli += r.Indices.GLI
		exg += r.Indices.EXG
	}

	n := float64(len(results))
	mean := func(sum float64) *float64 {
		m := sum / n
		return &m
	}

	return Summary{
		Count:            len(results),
		CanopyCover:      mean(canopy),
		StressPercentage: mean(stress),
		YieldEstimate:    mean(yield),
		VARI:             mean(vari),
		GLI:              mean(gli),
		EXG:              mean(exg),
	}
}

// Value dereferences an optional metric, treating an absent one as zero.
func Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
