package types

import "testing"

func TestParseCategory_BareCode(t *testing.T) {
	cat, ok := ParseCategory("GPE")
	if !ok {
		t.Fatal("ParseCategory(GPE): expected ok")
	}
	if cat != CategoryGPE {
		t.Errorf("ParseCategory(GPE) = %q, want %q", cat, CategoryGPE)
	}
}

func TestParseCategory_OntologyForm(t *testing.T) {
	cases := []struct {
		in   string
		want Category
	}{
		{"ldcOnt:GPE.UrbanArea.City", CategoryGPE},
		{"ldcOnt:PER", CategoryPER},
		{"ldcOnt:VEH.MilitaryVehicle", CategoryVEH},
		{"ldcOnt:org.Government", CategoryORG},
	}
	for _, tc := range cases {
		cat, ok := ParseCategory(tc.in)
		if !ok {
			t.Errorf("ParseCategory(%q): expected ok", tc.in)
			continue
		}
		if cat != tc.want {
			t.Errorf("ParseCategory(%q) = %q, want %q", tc.in, cat, tc.want)
		}
	}
}

func TestParseCategory_Unrecognized(t *testing.T) {
	for _, in := range []string{"", "XY", "ldcOnt:WEA.Gun", "MISC", "ldcOnt:"} {
		if cat, ok := ParseCategory(in); ok {
			t.Errorf("ParseCategory(%q) = %q, expected not ok", in, cat)
		}
	}
}

func TestMention_NormalizedText(t *testing.T) {
	m := Mention{Text: "  Kyiv City "}
	if got := m.NormalizedText(); got != "kyiv city" {
		t.Errorf("NormalizedText() = %q, want %q", got, "kyiv city")
	}
}
