package css

import (
	"bytes"
	"fmt"
	"regexp"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// charsetRule matches @charset at the very beginning of the stylesheet, the
// only place where it is honoured.
var charsetRule = regexp.MustCompile(`^@charset\s+"([^"]+)"\s*;`)

// Decode converts raw stylesheet bytes to UTF-8 following CSS Syntax rules:
// BOM wins, then @charset, then forced encoding (if any), then UTF-8.
func Decode(data []byte, forced encoding.Encoding) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return data[3:], nil
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return transcode(data, unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM))
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return transcode(data, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM))
	}

	if m := charsetRule.FindSubmatch(data); m != nil {
		enc, name := charset.Lookup(string(m[1]))
		if enc == nil {
			return nil, fmt.Errorf("unknown stylesheet charset %q", string(m[1]))
		}
		// utf-16 labels in @charset are meaningless without BOM - treat as utf-8
		if name == "utf-8" || name == "utf-16be" || name == "utf-16le" {
			return data, nil
		}
		return transcode(data, enc)
	}

	if forced != nil {
		return transcode(data, forced)
	}
	return data, nil
}

func transcode(data []byte, enc encoding.Encoding) ([]byte, error) {
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("unable to decode stylesheet: %w", err)
	}
	return out, nil
}
