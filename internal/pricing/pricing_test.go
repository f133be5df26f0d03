package pricing

import "testing"

func TestFamilyOf(t *testing.T) {
	cases := []struct {
		model string
		want  string
	}{
		{"claude-sonnet-4-5-20250929", FamilySonnet},
		{"claude-opus-4-1", FamilyOpus},
		{"anthropic/claude-haiku-4-5", FamilyHaiku},
		{"Claude-Opus-4", FamilyOpus},
		{"gpt-4o", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := FamilyOf(c.model); got != c.want {
			t.Errorf("FamilyOf(%q) = %q, want %q", c.model, got, c.want)
		}
	}
}

func TestCompute(t *testing.T) {
	rate := Rate{Family: FamilySonnet, InputPerMTok: 3.00, OutputPerMTok: 15.00}

	cost := Compute(100, 50, rate)
	if !cost.Known {
		t.Fatal("Known = false for recognized rate")
	}
	if cost.Input != 0.0003 {
		t.Errorf("Input = %v, want 0.0003", cost.Input)
	}
	if cost.Output != 0.00075 {
		t.Errorf("Output = %v, want 0.00075", cost.Output)
	}
}

func TestComputeRoundsTo5Places(t *testing.T) {
	rate := Rate{InputPerMTok: 3.00, OutputPerMTok: 15.00}

	// 7 input tokens at $3/MTok = 0.000021, rounds to 0.00002
	cost := Compute(7, 0, rate)
	if cost.Input != 0.00002 {
		t.Errorf("Input = %v, want 0.00002", cost.Input)
	}
}

func TestUnknown(t *testing.T) {
	cost := Unknown()
	if cost.Known {
		t.Error("Unknown().Known = true, want false")
	}
	if cost.Input != 0 || cost.Output != 0 {
		t.Errorf("Unknown() costs = %v/%v, want 0/0", cost.Input, cost.Output)
	}
}
