package normalize

import "testing"

func TestUtteranceNFC(t *testing.T) {
	// "ê" as e + COMBINING CIRCUMFLEX ACCENT must compose to a single rune.
	decomposed := "ê-nipat"
	composed := "ê-nipat"

	if got := Utterance(decomposed); got != composed {
		t.Errorf("Utterance(%q) = %q, want %q", decomposed, got, composed)
	}
	// Already-composed input is unchanged.
	if got := Utterance(composed); got != composed {
		t.Errorf("Utterance(%q) = %q, want %q", composed, got, composed)
	}
}

func TestUtteranceWhitespace(t *testing.T) {
	cases := map[string]string{
		"  ê-nipat  ":          "ê-nipat",
		"he \t is\n sleeping":  "he is sleeping",
		"":                     "",
		"   ":                  "",
		"sôhkêyimo":            "sôhkêyimo",
	}
	for in, want := range cases {
		if got := Utterance(in); got != want {
			t.Errorf("Utterance(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsBlank(t *testing.T) {
	if !IsBlank("") || !IsBlank("   \t") {
		t.Error("empty and whitespace-only labels must be blank")
	}
	if IsBlank("ê-nipat") {
		t.Error("non-empty label reported blank")
	}
}
