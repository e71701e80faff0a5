package runtime

import (
	"math"
	"testing"
)

func TestAddSampleMatchesMeanAndVarianceOfASmallSequence(t *testing.T) {
	var m Moments
	samples := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	for _, x := range samples {
		m = m.AddSample(x)
	}

	wantMean := 5.0
	if math.Abs(m.Mean-wantMean) > 1e-9 {
		t.Errorf("want mean %v, got %v", wantMean, m.Mean)
	}
	wantVariance := 4.0 // population variance of this textbook sequence
	if math.Abs(m.Variance()-wantVariance) > 1e-9 {
		t.Errorf("want variance %v, got %v", wantVariance, m.Variance())
	}
	if m.N != int64(len(samples)) {
		t.Errorf("want N=%d, got %d", len(samples), m.N)
	}
}

func TestMergeMomentsMatchesSequentialAddSample(t *testing.T) {
	samples := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	var sequential Moments
	for _, x := range samples {
		sequential = sequential.AddSample(x)
	}

	var left, right Moments
	for _, x := range samples[:4] {
		left = left.AddSample(x)
	}
	for _, x := range samples[4:] {
		right = right.AddSample(x)
	}
	merged := MergeMoments(left, right)

	if merged.N != sequential.N {
		t.Fatalf("want merged N %d, got %d", sequential.N, merged.N)
	}
	if math.Abs(merged.Mean-sequential.Mean) > 1e-9 {
		t.Errorf("want merged mean %v, got %v", sequential.Mean, merged.Mean)
	}
	if math.Abs(merged.CM2-sequential.CM2) > 1e-9 {
		t.Errorf("want merged cm2 %v, got %v", sequential.CM2, merged.CM2)
	}
}

func TestMergeMomentsIsAnIdentityOnAnEmptySide(t *testing.T) {
	var a Moments
	a = a.AddSample(3).AddSample(10)

	if got := MergeMoments(a, Moments{}); got != a {
		t.Errorf("want merging with an empty triple to return a unchanged, got %+v", got)
	}
	if got := MergeMoments(Moments{}, a); got != a {
		t.Errorf("want merging an empty triple with a to return a unchanged, got %+v", got)
	}
}

func TestVarianceOfAnEmptyMomentsIsZero(t *testing.T) {
	var m Moments
	if v := m.Variance(); v != 0 {
		t.Errorf("want 0, got %v", v)
	}
}
