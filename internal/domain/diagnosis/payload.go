package diagnosis

import (
	"encoding/base64"
	"strings"
)

// Payload strips a data URI header ("data:image/png;base64,") and returns the
// raw base64 payload. Strings without a separator are returned unchanged.
func Payload(image string) string {
	if i := strings.IndexByte(image, ','); i >= 0 {
		return image[i+1:]
	}
	return image
}

// MIMEType returns the media type declared in a data URI header, or "".
func MIMEType(image string) string {
	if !strings.HasPrefix(image, "data:") {
		return ""
	}
	header := image[len("data:"):]
	if i := strings.IndexByte(header, ','); i >= 0 {
		header = header[:i]
	}
	if i := strings.IndexByte(header, ';'); i >= 0 {
		header = header[:i]
	}
	return header
}

// DataURI encodes raw bytes as a base64 data URI.
func DataURI(mime string, data []byte) string {
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(mime) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mime)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}
