package domain

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
	"golang.org/x/text/width"
)

type taxLabels struct {
	included string
	excluded string
}

// taxLabelTable must cover every supported language.
var taxLabelTable = map[Language]taxLabels{
	CanonicalLanguage:      {included: "税込", excluded: "税抜"},
	LangEnglish:            {included: "tax included", excluded: "tax excluded"},
	LangChineseSimplified:  {included: "含税", excluded: "不含税"},
	LangChineseTraditional: {included: "含稅", excluded: "未稅"},
	LangKorean:             {included: "부가세 포함", excluded: "부가세 별도"},
	LangFrench:             {included: "TTC", excluded: "HT"},
	LangSpanish:            {included: "IVA incluido", excluded: "sin IVA"},
	LangGerman:             {included: "inkl. MwSt.", excluded: "zzgl. MwSt."},
	LangPortuguese:         {included: "com impostos", excluded: "sem impostos"},
	LangItalian:            {included: "IVA inclusa", excluded: "IVA esclusa"},
	LangRussian:            {included: "с НДС", excluded: "без НДС"},
	LangThai:               {included: "รวมภาษี", excluded: "ไม่รวมภาษี"},
	LangVietnamese:         {included: "đã gồm thuế", excluded: "chưa gồm thuế"},
	LangIndonesian:         {included: "termasuk pajak", excluded: "tidak termasuk pajak"},
	LangHindi:              {included: "कर सहित", excluded: "कर के बिना"},
	LangArabic:             {included: "شامل الضريبة", excluded: "غير شامل الضريبة"},
}

var pricePrinter = message.NewPrinter(language.Japanese)

// ParsePrice converts editor input into an amount. Blank, unparseable, non-finite and
// negative input all mean "no price" and yield nil. Full-width digits are accepted.
func ParsePrice(input string) *float64 {
	normalized := strings.TrimSpace(width.Narrow.String(input))
	if normalized == "" {
		return nil
	}
	amount, err := strconv.ParseFloat(normalized, 64)
	if err != nil || !validAmount(amount) {
		return nil
	}
	return &amount
}

func validAmount(amount float64) bool {
	return !math.IsNaN(amount) && !math.IsInf(amount, 0) && amount >= 0
}

// TaxLabel returns the display label for a tax mode, using the canonical language's
// labels for languages missing from the table.
func TaxLabel(lang Language, mode TaxMode) string {
	labels, ok := taxLabelTable[lang]
	if !ok {
		labels = taxLabelTable[CanonicalLanguage]
	}
	if mode.Included() {
		return labels.included
	}
	return labels.excluded
}

// FormatPrice renders a yen price with its tax label. It reports false when the item
// has no price.
func FormatPrice(lang Language, price *Price) (string, bool) {
	if price == nil || !validAmount(price.Amount) {
		return "", false
	}
	var amount string
	if price.Amount == math.Trunc(price.Amount) && price.Amount < math.MaxInt64 {
		amount = pricePrinter.Sprintf("%d", int64(price.Amount))
	} else {
		amount = pricePrinter.Sprint(number.Decimal(price.Amount, number.MaxFractionDigits(2)))
	}
	return "¥" + amount + "（" + TaxLabel(lang, price.TaxMode) + "）", true
}
