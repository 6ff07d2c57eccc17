package domain

import "testing"

func TestParsePrice(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want *float64
	}{
		{name: "blank", in: "   ", want: nil},
		{name: "integer", in: "1200", want: floatPtr(1200)},
		{name: "padded decimal", in: " 99.5 ", want: floatPtr(99.5)},
		{name: "full width", in: "１２００", want: floatPtr(1200)},
		{name: "zero", in: "0", want: floatPtr(0)},
		{name: "garbage", in: "12yen", want: nil},
		{name: "negative", in: "-5", want: nil},
		{name: "nan", in: "NaN", want: nil},
		{name: "infinite", in: "Inf", want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParsePrice(tc.in)
			switch {
			case tc.want == nil && got != nil:
				t.Fatalf("expected no price, got %v", *got)
			case tc.want != nil && got == nil:
				t.Fatalf("expected %v, got nil", *tc.want)
			case tc.want != nil && *got != *tc.want:
				t.Fatalf("expected %v, got %v", *tc.want, *got)
			}
		})
	}
}

func TestTaxLabelCoversRoster(t *testing.T) {
	for _, lang := range SupportedLanguages() {
		labels, ok := taxLabelTable[lang]
		if !ok || labels.included == "" || labels.excluded == "" {
			t.Fatalf("missing tax labels for %q", lang)
		}
	}
	if got := TaxLabel(LangEnglish, TaxExcluded); got != "tax excluded" {
		t.Fatalf("unexpected english label %q", got)
	}
	if got := TaxLabel("xx", TaxIncluded); got != "税込" {
		t.Fatalf("expected canonical fallback label, got %q", got)
	}
}

func TestFormatPrice(t *testing.T) {
	if _, ok := FormatPrice(LangEnglish, nil); ok {
		t.Fatalf("expected absent price to report false")
	}

	got, ok := FormatPrice(LangEnglish, &Price{Amount: 1200, TaxMode: TaxIncluded})
	if !ok {
		t.Fatalf("expected formatted price")
	}
	if want := "¥1,200（tax included）"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	got, _ = FormatPrice(CanonicalLanguage, &Price{Amount: 500, TaxMode: TaxExcluded})
	if want := "¥500（税抜）"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func floatPtr(v float64) *float64 {
	return &v
}
