package vegetation

import "testing"

func TestAggregateNoImages(t *testing.T) {
	t.Parallel()

	s := Aggregate(nil)
	if s.HasData() || s.Count != 0 {
		t.Fatalf("expected no data, got count %d", s.Count)
	}
	for name, p := range map[string]*float64{
		"canopy": s.CanopyCover, "stress": s.StressPercentage, "yield": s.YieldEstimate,
		"vari": s.VARI, "gli": s.GLI, "exg": s.EXG,
	} {
		if p != nil {
			t.Errorf("%s should be unset, got %v", name, *p)
		}
	}
}

func TestAggregateSingleImageIsIdentity(t *testing.T) {
	t.Parallel()

	r := Result{
		Indices: Indices{VARI: 0.123, EXG: 33.5, GLI: 0.071, CanopyPct: 62.25, StressPct: 4.5},
		Yield:   3.57,
	}
	s := Aggregate([]Result{r})

	if s.Count != 1 {
		t.Fatalf("count = %d", s.Count)
	}
	if *s.CanopyCover != 62.25 || *s.StressPercentage != 4.5 || *s.YieldEstimate != 3.57 ||
		*s.VARI != 0.123 || *s.GLI != 0.071 || *s.EXG != 33.5 {
		t.Fatalf("single-image summary changed values: %+v", s)
	}
}

func TestAggregateMean(t *testing.T) {
	t.Parallel()

	s := Aggregate([]Result{
		{Indices: Indices{VARI: 0.1, EXG: 10, GLI: 0.2, CanopyPct: 20, StressPct: 10}, Yield: 1},
		{Indices: Indices{VARI: 0.3, EXG: 30, GLI: 0.4, CanopyPct: 60, StressPct: 30}, Yield: 3},
	})

	want := map[string]float64{
		"canopy": 40, "stress": 20, "yield": 2, "vari": 0.2, "gli": 0.3, "exg": 20,
	}
	got := map[string]float64{
		"canopy": *s.CanopyCover, "stress": *s.StressPercentage, "yield": *s.YieldEstimate,
		"vari": *s.VARI, "gli": *s.GLI, "exg": *s.EXG,
	}
	for k, w := range want {
		if Round(got[k], 6) != w {
			t.Errorf("%s = %v, want %v", k, got[k], w)
		}
	}
	if s.Count != 2 {
		t.Errorf("count = %d, want 2", s.Count)
	}
}

func TestValue(t *testing.T) {
	t.Parallel()

	if Value(nil) != 0 {
		t.Fatal("nil should read as zero")
	}
	v := 4.2
	if Value(&v) != 4.2 {
		t.Fatal("value not dereferenced")
	}
}
