package textproc

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"lowercase", "HELLO World", "hello world"},
		{"punctuation stripped", "Sir!! Transfer Rs.50,000 NOW...", "sir transfer rs 50 000 now"},
		{"whitespace collapsed", "  too   many\t\tspaces \n here ", "too many spaces here"},
		{"digits kept", "call 1930 now", "call 1930 now"},
		{"unicode stripped", "पैसा transfer karo", "transfer karo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractAmounts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"rupee prefix", "please pay rs 50,000 now", []string{"rs 50,000"}},
		{"lakh and crore", "send 5 lakh and then 2 crore", []string{"5 lakh", "2 crore"}},
		{"plain number", "the fine is 9999", []string{"9999"}},
		{"duplicates retained", "pay 500 then pay 500 again", []string{"500", "500"}},
		{"none", "no amounts here", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractAmounts(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractAmounts(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCallDurationRisk(t *testing.T) {
	tests := []struct {
		seconds   int
		wantLevel string
		wantScore int
	}{
		{0, "LOW", 0},
		{599, "LOW", 0},
		{600, "MEDIUM", 15},
		{1799, "MEDIUM", 15},
		{1800, "HIGH", 30},
		{7200, "HIGH", 30},
	}
	for _, tt := range tests {
		got := CallDurationRisk(tt.seconds)
		if got.Level != tt.wantLevel || got.Score != tt.wantScore {
			t.Errorf("CallDurationRisk(%d) = %s/%d, want %s/%d",
				tt.seconds, got.Level, got.Score, tt.wantLevel, tt.wantScore)
		}
		if got.Note == "" {
			t.Errorf("CallDurationRisk(%d) has empty note", tt.seconds)
		}
	}
}
