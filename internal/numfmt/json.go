package numfmt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Wire is the locale of text values in JSON requests. Every JSON decoder in
// the module reads with it, so text written by DecodeText is only meaningful
// when later parsed with Wire. Callers that need another locale decode into
// plain strings and call Locale.Parse themselves.
var Wire = BR

// DecodeText reads a JSON form value. Strings come back unchanged, numbers
// are rewritten in the locale's notation so that Parse reads them back
// exactly, and null is the empty string.
func (l Locale) DecodeText(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return "", nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", fmt.Errorf("expected number or string, got %s", data)
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return "", fmt.Errorf("parse number %s: %w", n, err)
	}
	return strings.Replace(strconv.FormatFloat(f, 'f', -1, 64), ".", string(l.Decimal), 1), nil
}

// Amount is a number in a JSON request that may also arrive as Wire text,
// e.g. 1234.5 or "1.234,50".
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s, err := Wire.DecodeText(data)
	if err != nil {
		return err
	}
	*a = Amount(Wire.Parse(s))
	return nil
}

// Float returns a as a float64.
func (a Amount) Float() float64 {
	return float64(a)
}
