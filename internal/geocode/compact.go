// Package geocode converts sets of integer area or category codes to and from
// the service's shorthand range notation ("1...3,7,9...10").
package geocode

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"ukcensusapi/internal/core"
)

// RangeSep separates the first and last code of a consecutive run.
const RangeSep = "..."

// MaxExpand bounds the number of codes Expand will produce. The largest real
// selection, every output area in England and Wales, is about 181,000 codes.
const MaxExpand = 1 << 20

// Compact returns the shorthand notation for codes. Duplicates are ignored and
// the input slice is left untouched.
func Compact(codes []int) string {
	switch len(codes) {
	case 0:
		return ""
	case 1:
		return strconv.Itoa(codes[0])
	}

	sorted := slices.Clone(codes)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var b strings.Builder
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[i] == sorted[i-1]+1 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(sorted[start]))
		if i-1 > start {
			b.WriteString(RangeSep)
			b.WriteString(strconv.Itoa(sorted[i-1]))
		}
		start = i
	}
	return b.String()
}

// Expand parses shorthand notation back into a sorted slice of unique codes.
// Input that would expand to more than MaxExpand codes is rejected.
func Expand(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var codes []int
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		first, last, isRange := strings.Cut(tok, RangeSep)
		lo, err := strconv.Atoi(first)
		if err != nil {
			return nil, core.NewUnexpectedTypeError(tok, "an integer code")
		}
		hi := lo
		if isRange {
			if hi, err = strconv.Atoi(last); err != nil || hi < lo {
				return nil, core.NewUnexpectedTypeError(tok, "an ascending code range")
			}
		}
		if span := hi - lo; span < 0 || span >= MaxExpand-len(codes) {
			return nil, core.NewUnexpectedTypeError(tok, fmt.Sprintf("a range of at most %d codes", MaxExpand))
		}
		for c := lo; c <= hi; c++ {
			codes = append(codes, c)
		}
	}

	slices.Sort(codes)
	return slices.Compact(codes), nil
}
