package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestOptional_Undefined(t *testing.T) {
	o := None[float64]()
	if o.Defined() {
		t.Error("expected undefined")
	}
	if o.Ptr() != nil {
		t.Error("expected nil pointer for undefined value")
	}
	data, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "null" {
		t.Errorf("expected null, got %s", data)
	}
}

func TestOptional_RoundTrip(t *testing.T) {
	o := Some(1.5)
	data, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "1.5" {
		t.Errorf("expected 1.5, got %s", data)
	}

	var back Optional[float64]
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	v, ok := back.Get()
	if !ok || v != 1.5 {
		t.Errorf("expected defined 1.5, got %v (defined=%v)", v, ok)
	}

	if err := json.Unmarshal([]byte("null"), &back); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if back.Defined() {
		t.Error("null should decode as undefined")
	}
}

func TestOptional_FromPtr(t *testing.T) {
	if FromPtr[int](nil).Defined() {
		t.Error("nil pointer should be undefined")
	}
	d := decimal.RequireFromString("-2.5")
	o := FromPtr(&d)
	v, ok := o.Get()
	if !ok || !v.Equal(d) {
		t.Errorf("expected %s, got %s", d, v)
	}
	// Ptr returns a copy
	p := o.Ptr()
	*p = decimal.Zero
	if v, _ := o.Get(); !v.Equal(d) {
		t.Error("Ptr must not alias the stored value")
	}
}

func TestOutcomeFromPnL_ZeroIsLoss(t *testing.T) {
	tests := []struct {
		pnl  string
		want Outcome
	}{
		{"0.01", OutcomeWin},
		{"0", OutcomeLoss},
		{"-3", OutcomeLoss},
	}
	for _, tt := range tests {
		if got := OutcomeFromPnL(decimal.RequireFromString(tt.pnl)); got != tt.want {
			t.Errorf("OutcomeFromPnL(%s) = %s, want %s", tt.pnl, got, tt.want)
		}
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		tag  string
		want Direction
		ok   bool
	}{
		{"long", DirectionLong, true},
		{" SELL ", DirectionShort, true},
		{"多", DirectionLong, true},
		{"空", DirectionShort, true},
		{"flat", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseDirection(tt.tag)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseDirection(%q) = %s,%v want %s,%v", tt.tag, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSelection_Contains(t *testing.T) {
	s := Selection{Indices: []int{1, 2, 3, 7, 9}}
	for _, i := range []int{1, 3, 7, 9} {
		if !s.Contains(i) {
			t.Errorf("expected %d to be selected", i)
		}
	}
	for _, i := range []int{0, 4, 8, 10} {
		if s.Contains(i) {
			t.Errorf("did not expect %d to be selected", i)
		}
	}
	if (&Selection{}).Contains(0) {
		t.Error("empty selection contains nothing")
	}
}

func TestLabelString(t *testing.T) {
	got := LabelString([]Outcome{OutcomeWin, OutcomeLoss, OutcomeLoss})
	if got != "WLL" {
		t.Errorf("expected WLL, got %s", got)
	}
}
