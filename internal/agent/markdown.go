package agent

import (
	"strings"

	"github.com/russross/blackfriday/v2"
)

const markdownExtensions = blackfriday.CommonExtensions | blackfriday.AutoHeadingIDs

// RenderMarkdown converts post markdown to the HTML stored as post content.
func RenderMarkdown(markdown string) string {
	html := blackfriday.Run([]byte(markdown), blackfriday.WithExtensions(markdownExtensions))
	return strings.TrimSpace(string(html))
}
