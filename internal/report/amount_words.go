package report

import (
	"math"
	"strings"
)

var (
	capitalDigits = []string{"零", "壹", "贰", "叁", "肆", "伍", "陆", "柒", "捌", "玖"}
	groupUnits    = []string{"仟", "佰", "拾", ""}
	bigUnits      = []string{"", "万", "亿", "万亿"}
)

// AmountInWords renders an amount in Chinese financial capitals, e.g.
// 1600 -> 壹仟陆佰元整. Amounts are rounded to the fen.
func AmountInWords(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ""
	}

	cents := int64(math.Round(math.Abs(amount) * 100))
	yuan := cents / 100
	jiao := (cents / 10) % 10
	fen := cents % 10

	var b strings.Builder
	if amount < 0 && cents > 0 {
		b.WriteString("负")
	}
	b.WriteString(integerWords(yuan))
	b.WriteString("元")

	switch {
	case jiao == 0 && fen == 0:
		b.WriteString("整")
	case fen == 0:
		b.WriteString(capitalDigits[jiao] + "角")
	case jiao == 0:
		b.WriteString("零" + capitalDigits[fen] + "分")
	default:
		b.WriteString(capitalDigits[jiao] + "角" + capitalDigits[fen] + "分")
	}
	return b.String()
}

func integerWords(n int64) string {
	if n == 0 {
		return capitalDigits[0]
	}

	var groups []int
	for n > 0 {
		groups = append(groups, int(n%10000))
		n /= 10000
	}

	var b strings.Builder
	pendingZero := false
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		if g == 0 {
			pendingZero = b.Len() > 0
			continue
		}
		if b.Len() > 0 && (pendingZero || g < 1000) {
			b.WriteString(capitalDigits[0])
		}
		b.WriteString(groupWords(g))
		b.WriteString(bigUnits[i%len(bigUnits)])
		pendingZero = false
	}
	return b.String()
}

// groupWords renders 1..9999 without leading or trailing zeros.
func groupWords(g int) string {
	digits := [4]int{g / 1000, g / 100 % 10, g / 10 % 10, g % 10}

	var b strings.Builder
	zero := false
	for i, d := range digits {
		if d == 0 {
			zero = b.Len() > 0
			continue
		}
		if zero {
			b.WriteString(capitalDigits[0])
			zero = false
		}
		b.WriteString(capitalDigits[d] + groupUnits[i])
	}
	return b.String()
}
