package twofactor

import (
	"encoding/base32"
	"strings"

	"github.com/khanghh/krealm/params"
)

// Formatter turns raw recovery code bytes into a human readable string and back.
type Formatter interface {
	Format(raw []byte) string
	Validate(code string) bool
	Decode(code string) ([]byte, error)
}

// zbase32Alphabet is lower case and leaves out the look-alike characters l, v, 0 and 2.
const zbase32Alphabet = "ybndrfg8ejkmcpqxot1uwisza345h769"

const b32GroupSize = 4

var zbase32Encoding = base32.NewEncoding(zbase32Alphabet).WithPadding(base32.NoPadding)

// B32Split4Formatter renders codes as z-base-32 split into dash separated groups of four.
type B32Split4Formatter struct{}

func (B32Split4Formatter) Format(raw []byte) string {
	encoded := zbase32Encoding.EncodeToString(raw)
	var sb strings.Builder
	sb.Grow(len(encoded) + len(encoded)/b32GroupSize)
	for i, c := range encoded {
		if i > 0 && i%b32GroupSize == 0 {
			sb.WriteByte('-')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

func (B32Split4Formatter) Validate(code string) bool {
	if code == "" || code[len(code)-1] == '-' {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (i+1)%(b32GroupSize+1) == 0 {
			if c != '-' {
				return false
			}
			continue
		}
		if strings.IndexByte(zbase32Alphabet, c) < 0 {
			return false
		}
	}
	return true
}

func (f B32Split4Formatter) Decode(code string) ([]byte, error) {
	if !f.Validate(code) {
		return nil, ErrRecoveryCodeDecode
	}
	raw, err := zbase32Encoding.DecodeString(strings.ReplaceAll(code, "-", ""))
	if err != nil {
		return nil, ErrRecoveryCodeDecode
	}
	return raw, nil
}

var formatters = map[string]Formatter{
	params.DefaultRecoveryCodeFormat: B32Split4Formatter{},
}

// FormatterFor returns the formatter registered under the format id. An empty id selects the default.
func FormatterFor(format string) (Formatter, error) {
	if format == "" {
		format = params.DefaultRecoveryCodeFormat
	}
	f, ok := formatters[format]
	if !ok {
		return nil, ErrUnknownRecoveryCodeFormat
	}
	return f, nil
}
