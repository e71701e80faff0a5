package runtime

import (
	"math"
	"testing"

	"vecjit/internal/environment"
	"vecjit/internal/value"
)

func TestScalarMathPropagatesNA(t *testing.T) {
	na := value.NADouble()
	if got := Sin(na); !value.IsNADouble(got) {
		t.Errorf("want Sin(NA) to stay NA, got %v", got)
	}
	if got := Pow(na, 2); !value.IsNADouble(got) {
		t.Errorf("want Pow(NA, 2) to produce NA, got %v", got)
	}
	if got := Pow(2, na); !value.IsNADouble(got) {
		t.Errorf("want Pow(2, NA) to produce NA, got %v", got)
	}
}

func TestScalarMathOnOrdinaryValues(t *testing.T) {
	if got := Exp(0); got != 1 {
		t.Errorf("want Exp(0)=1, got %v", got)
	}
	if got := Hypot(3, 4); got != 5 {
		t.Errorf("want Hypot(3,4)=5, got %v", got)
	}
	if got := Atan2(1, 1); math.Abs(got-math.Pi/4) > 1e-12 {
		t.Errorf("want Atan2(1,1)=pi/4, got %v", got)
	}
}

func TestBoxUnboxRoundTrip(t *testing.T) {
	v := BoxDouble(3.5)
	f, ok := UnboxDouble(v)
	if !ok || f != 3.5 {
		t.Fatalf("want (3.5, true), got (%v, %v)", f, ok)
	}

	if _, ok := UnboxInteger(v); ok {
		t.Error("want unboxing a Double as an Integer to report ok=false")
	}

	iv := BoxInteger(7)
	i, ok := UnboxInteger(iv)
	if !ok || i != 7 {
		t.Fatalf("want (7, true), got (%v, %v)", i, ok)
	}

	lv := BoxLogical(1)
	l, ok := UnboxLogical(lv)
	if !ok || l != 1 {
		t.Fatalf("want (1, true), got (%v, %v)", l, ok)
	}
}

func TestSLoadSStoreAddressTheRegisterFile(t *testing.T) {
	regs := make([]value.Value, 8)
	base := 2
	SStore(regs, base, 1, value.ScalarInt(42))
	got := SLoad(regs, base, 1)
	if got.AsIntScalar() != 42 {
		t.Errorf("want 42, got %v", got.AsIntScalar())
	}
}

func TestELoadEStoreRoundTripThroughAnEnvironment(t *testing.T) {
	env := environment.New(nil)
	EStore(env, "x", value.ScalarDouble(9))

	got, err := ELoad(env, "x")
	if err != nil {
		t.Fatalf("want no error, got %v", err)
	}
	if got.AsDoubleScalar() != 9 {
		t.Errorf("want 9, got %v", got.AsDoubleScalar())
	}
}

func TestLengthReportsVectorLength(t *testing.T) {
	v := value.WithCapacity(value.Double, 10)
	if got := Length(v); got != 10 {
		t.Errorf("want 10, got %d", got)
	}
}

func TestReallocGrowsAndPreservesPrefix(t *testing.T) {
	buf := []float64{1, 2, 3}
	grown := ReallocDouble(buf, 6)
	if len(grown) != 6 {
		t.Fatalf("want length 6, got %d", len(grown))
	}
	for i, want := range []float64{1, 2, 3} {
		if grown[i] != want {
			t.Errorf("want prefix preserved at %d, got %v", i, grown[i])
		}
	}
}

func TestReallocShrinkingReusesCapacity(t *testing.T) {
	buf := make([]int64, 3, 10)
	buf[0], buf[1], buf[2] = 1, 2, 3
	grown := ReallocInteger(buf, 2)
	if len(grown) != 2 {
		t.Fatalf("want length 2, got %d", len(grown))
	}
	if grown[0] != 1 || grown[1] != 2 {
		t.Errorf("want prefix preserved, got %v", grown)
	}
}
