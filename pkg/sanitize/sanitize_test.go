package sanitize

import (
	"strings"
	"testing"
)

func TestChannelName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		fallback string
		expected string
	}{
		{"empty input falls back", "", "service", "service"},
		{"plain lowercase passes through", "vipservice", "service", "vipservice"},
		{"uppercase is lowered", "VIP Rank", "service", "vip-rank"},
		{"diacritics are stripped", "Héllo World!!", "service", "hello-world"},
		{"symbols removed", "50% off!!! ***", "service", "50-off"},
		{"whitespace runs collapse", "a   b\t c", "service", "a-b-c"},
		{"repeated hyphens collapse", "a---b--c", "service", "a-b-c"},
		{"underscores survive", "world_one", "service", "world_one"},
		{"only symbols falls back", "!!!***???", "player", "player"},
		{"leading and trailing space trimmed", "  nether hub  ", "service", "nether-hub"},
		{"mixed diacritics and symbols", "Çrâzy Wörld #3", "service", "crazy-world-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChannelName(tt.input, tt.fallback)
			if got != tt.expected {
				t.Errorf("ChannelName(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestChannelNameDeterministic(t *testing.T) {
	in := "Sömé Cómplex  Input --- here"
	first := ChannelName(in, "service")
	for i := 0; i < 5; i++ {
		if got := ChannelName(in, "service"); got != first {
			t.Fatalf("non-deterministic output: %q vs %q", got, first)
		}
	}
}

func TestChannelNameLengthCap(t *testing.T) {
	long := strings.Repeat("abc ", 60)
	got := ChannelName(long, "service")
	if len(got) > MaxLength {
		t.Fatalf("length %d exceeds cap %d", len(got), MaxLength)
	}
}

func TestChannelNameCharset(t *testing.T) {
	inputs := []string{"Héllo World!!", "漢字テスト", "a b_c-d", "ÅÄÖ åäö", "tab\tand\nnewline"}
	for _, in := range inputs {
		got := ChannelName(in, "fallback")
		for _, r := range got {
			valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
			if !valid {
				t.Errorf("ChannelName(%q) produced invalid rune %q in %q", in, r, got)
			}
		}
	}
}
