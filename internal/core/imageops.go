package core

import (
	"errors"
	"math"
	"os"
	"strconv"
	"strings"
)

var (
	ErrBadNumberSyntax = errors.New("bad number syntax")
	ErrNumberRange     = errors.New("number does not fit in 32 bits")
)

// ParseNumber parses a header word given on the command line: decimal or
// 0x-prefixed hex, optionally scaled by a K or M suffix (binary units).
func ParseNumber(s string) (uint32, error) {
	ss := strings.ToUpper(strings.TrimSpace(s))
	if ss == "" {
		return 0, ErrBadNumberSyntax
	}
	mul := uint64(1)
	switch {
	case strings.HasSuffix(ss, "K"):
		mul = 1024
		ss = strings.TrimSuffix(ss, "K")
	case strings.HasSuffix(ss, "M"):
		mul = 1024 * 1024
		ss = strings.TrimSuffix(ss, "M")
	}
	base := 10
	if strings.HasPrefix(ss, "0X") {
		base = 16
		ss = ss[2:]
	}
	v, err := strconv.ParseUint(ss, base, 64)
	if err != nil {
		var nerr *strconv.NumError
		if errors.As(err, &nerr) && nerr.Err == strconv.ErrRange {
			return 0, ErrNumberRange
		}
		return 0, ErrBadNumberSyntax
	}
	if v > math.MaxUint32/mul {
		return 0, ErrNumberRange
	}
	return uint32(v * mul), nil
}

func FileSize(path string) (int64, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}
