package version

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0", "1.0.0", 0},
		{"1.9", "1.10", -1},
		{"2.0.0", "1.99.99", 1},
		{"v1.2.3", "1.2.3", 0},
		{"1.0.0-rc1", "1.0.0", -1},
		{"1.0.0", "1.0.0.1", -1},
		{"3.4b", "3.4a", 1},
		{"", "0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		a, op, b string
		want     bool
	}{
		{"1.2.0", ">=", "1.2", true},
		{"1.2.0", ">", "1.2", false},
		{"0.9", "<", "1.0", true},
		{"1.0", "<=", "1.0", true},
		{"1.0", "==", "1.0.0", true},
		{"1.0", "!=", "1.1", true},
	}
	for _, tt := range tests {
		got, err := Check(tt.a, tt.op, tt.b)
		if err != nil {
			t.Fatalf("Check(%q %s %q): %v", tt.a, tt.op, tt.b, err)
		}
		if got != tt.want {
			t.Errorf("Check(%q %s %q) = %v, want %v", tt.a, tt.op, tt.b, got, tt.want)
		}
	}
	if _, err := Check("1", "~", "1"); err == nil {
		t.Error("Check with unknown operator succeeded")
	}
}
