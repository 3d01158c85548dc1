package indicator

import (
	"testing"

	"CoinScreener/internal/model"
)

func TestChangeAt_Backward(t *testing.T) {
	s := dailySeries("bitcoin", []float64{100, 105, 110, 120})
	change, ok := ChangeAt(s, 3, 2, model.DirectionBackward)
	if !ok {
		t.Fatal("expected defined change")
	}
	// (120 - 105) / 105 * 100
	want := (120.0 - 105.0) / 105.0 * 100
	if change != want {
		t.Errorf("expected %.4f, got %.4f", want, change)
	}
}

func TestChangeAt_Forward(t *testing.T) {
	s := dailySeries("bitcoin", []float64{100, 105, 110, 120})
	change, ok := ChangeAt(s, 0, 3, model.DirectionForward)
	if !ok {
		t.Fatal("expected defined change")
	}
	if change != 20 {
		t.Errorf("expected 20, got %.4f", change)
	}
}

func TestChangeAt_InsufficientHistory(t *testing.T) {
	s := dailySeries("bitcoin", []float64{100, 105, 110})
	if _, ok := ChangeAt(s, 2, 7, model.DirectionBackward); ok {
		t.Error("backward window past series start must be undefined")
	}
	if _, ok := ChangeAt(s, 2, 1, model.DirectionForward); ok {
		t.Error("forward window past series end must be undefined")
	}
}

func TestChangeAt_ZeroStartPrice(t *testing.T) {
	s := dailySeries("broken", []float64{0, 10})
	if _, ok := ChangeAt(s, 1, 1, model.DirectionBackward); ok {
		t.Error("change from a zero price must be undefined")
	}
}
