package livereload

import (
	"bytes"
	"mime"
	"net/http"
)

// html reports whether a response with the given content type and body is
// an HTML page
func html(contentType string, body []byte) bool {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html"
}

// rewrite injects the script into the page. It's a no-op if the page already
// has the script.
func rewrite(data []byte, url string) ([]byte, bool) {
	if bytes.Contains(data, []byte(openTag)) {
		return data, false
	}
	index := lastIndexFold(data, []byte("</body>"))
	if index < 0 {
		index = lastIndexFold(data, []byte("</html>"))
	}
	if index < 0 {
		index = len(data)
	}
	script := scriptTag(url)
	out := make([]byte, 0, len(data)+len(script))
	out = append(out, data[:index]...)
	out = append(out, script...)
	out = append(out, data[index:]...)
	return out, true
}

// lastIndexFold is bytes.LastIndex ignoring ASCII case. Only ASCII is folded
// so offsets in the lowered copy match the original.
func lastIndexFold(data, tag []byte) int {
	lower := make([]byte, len(data))
	for i, c := range data {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower[i] = c
	}
	return bytes.LastIndex(lower, tag)
}
