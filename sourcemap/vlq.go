package sourcemap

import (
	"errors"
	"strings"
)

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var base64Values = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := range len(base64Chars) {
		t[base64Chars[i]] = int8(i)
	}
	return t
}()

const (
	vlqShift        = 5
	vlqContinuation = 1 << vlqShift
	vlqMask         = vlqContinuation - 1
)

func writeVLQ(sb *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = (-v << 1) | 1
	}
	for {
		digit := u & vlqMask
		u >>= vlqShift
		if u > 0 {
			digit |= vlqContinuation
		}
		sb.WriteByte(base64Chars[digit])
		if u == 0 {
			return
		}
	}
}

var errBadVLQ = errors.New("malformed VLQ value")

// readVLQ decodes one value from s returning it and the rest of the string.
func readVLQ(s string) (int, string, error) {
	var result, shift int
	for i := 0; i < len(s); i++ {
		digit := int(base64Values[s[i]])
		if digit < 0 {
			return 0, s, errBadVLQ
		}
		result |= (digit & vlqMask) << shift
		if digit&vlqContinuation == 0 {
			v := result >> 1
			if result&1 != 0 {
				v = -v
			}
			return v, s[i+1:], nil
		}
		shift += vlqShift
		if shift > 60 {
			return 0, s, errBadVLQ
		}
	}
	return 0, s, errBadVLQ
}
