package market

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrTradeDate is returned when a report caption cannot be turned into a date.
var ErrTradeDate = errors.New("invalid trade date caption")

// captionSuffixRunes is the length of the trailing "の取引" on the date caption.
const captionSuffixRunes = 3

var eraMarkers = strings.NewReplacer("年", "", "月", "", "日", "")

// TradeDate is the trading day a report covers.
type TradeDate struct {
	// Day is the eight digit YYYYMMDD form.
	Day string
	// Month is the six digit YYYYMM prefix of Day.
	Month string
}

// ParseTradeDate converts a caption such as "2020年11月09日の取引" into
// TradeDate{Day: "20201109", Month: "202011"}.
func ParseTradeDate(caption string) (TradeDate, error) {
	trimmed := []rune(strings.TrimSpace(caption))
	if len(trimmed) <= captionSuffixRunes {
		return TradeDate{}, fmt.Errorf("%w: %q", ErrTradeDate, caption)
	}
	day := eraMarkers.Replace(string(trimmed[:len(trimmed)-captionSuffixRunes]))
	if len(day) != 8 || strings.IndexFunc(day, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
		return TradeDate{}, fmt.Errorf("%w: %q", ErrTradeDate, caption)
	}
	return TradeDate{Day: day, Month: day[:6]}, nil
}
