// response/failure.go
/* Responsible for turning the body of a failed (non-2xx) load response into a short, loggable
detail string. The load driver never surfaces these as errors; they only enrich debug logs so a
failing target can be diagnosed without capturing traffic. */
package response

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"golang.org/x/net/html"
)

// MaxDetailLength caps the detail string, in runes.
const MaxDetailLength = 256

// MaxBodyBytes caps how much of a failed response body is read for detail extraction.
const MaxBodyBytes = 4096

// jsonDetailKeys are checked in order; FastAPI style errors use "detail".
var jsonDetailKeys = []string{"detail", "message", "error", "errors"}

// ReadFailureDetail reads at most MaxBodyBytes of the response body and extracts a detail string.
// The caller still owns the body and must drain and close it.
func ReadFailureDetail(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return ""
	}
	return ParseFailureDetail(resp.Header.Get("Content-Type"), bodyBytes)
}

// ParseFailureDetail extracts a human-readable message from an error body based on its MIME type.
func ParseFailureDetail(contentType string, bodyBytes []byte) string {
	if len(bytes.TrimSpace(bodyBytes)) == 0 {
		return ""
	}

	mimeType, _ := parseHeader(contentType)
	var detail string
	switch mimeType {
	case "application/json", "application/problem+json":
		detail = parseJSONDetail(bodyBytes)
	case "application/xml", "text/xml":
		detail = parseXMLDetail(bodyBytes)
	case "text/html":
		detail = parseHTMLDetail(bodyBytes)
	default:
		detail = string(bodyBytes)
	}

	return truncate(strings.TrimSpace(detail))
}

// parseJSONDetail looks for a well-known error key; nested objects are searched for "message".
func parseJSONDetail(bodyBytes []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(bodyBytes, &payload); err != nil {
		return string(bodyBytes)
	}

	for _, key := range jsonDetailKeys {
		value, ok := payload[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			return v
		case map[string]any:
			if msg, ok := v["message"].(string); ok {
				return msg
			}
		}
		if encoded, err := json.Marshal(value); err == nil {
			return string(encoded)
		}
	}
	return string(bodyBytes)
}

// parseXMLDetail joins all non-blank text nodes of the document.
func parseXMLDetail(bodyBytes []byte) string {
	doc, err := xmlquery.Parse(bytes.NewReader(bodyBytes))
	if err != nil {
		return string(bodyBytes)
	}

	var messages []string
	var traverse func(*xmlquery.Node)
	traverse = func(n *xmlquery.Node) {
		if n.Type == xmlquery.TextNode && strings.TrimSpace(n.Data) != "" {
			messages = append(messages, strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	if len(messages) == 0 {
		return string(bodyBytes)
	}
	return strings.Join(messages, "; ")
}

// parseHTMLDetail prefers the <title>, then the text of <h1> and <p> elements, which is where proxies
// and default server error pages put their message.
func parseHTMLDetail(bodyBytes []byte) string {
	doc, err := html.Parse(bytes.NewReader(bodyBytes))
	if err != nil {
		return string(bodyBytes)
	}

	var title string
	var messages []string
	var parse func(*html.Node)
	parse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" {
					title = textContent(n)
				}
			case "h1", "p":
				if text := textContent(n); text != "" {
					messages = append(messages, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			parse(c)
		}
	}
	parse(doc)

	if title != "" {
		return title
	}
	if len(messages) > 0 {
		return strings.Join(messages, "; ")
	}
	return "HTML error page"
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			if text := strings.TrimSpace(c.Data); text != "" {
				if sb.Len() > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(text)
			}
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxDetailLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxDetailLength]) + "..."
}
