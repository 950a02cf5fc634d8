package svg

import (
	"bytes"
	"encoding/xml"
)

func EscapeText(text string) string {
	buf := new(bytes.Buffer)
	_ = xml.EscapeText(buf, []byte(text))
	return buf.String()
}

// EscapeAttr escapes s for use inside a double quoted attribute.
func EscapeAttr(s string) string {
	// xml.EscapeText already escapes quotes.
	return EscapeText(s)
}
