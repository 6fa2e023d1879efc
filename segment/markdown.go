package segment

import (
	"strings"

	"github.com/russross/blackfriday/v2"
)

// StripMarkdown returns the readable text of a markdown document. Link and
// image targets are dropped, their text is kept, and block elements end
// with a newline so sentences do not run together.
func StripMarkdown(input string) string {
	root := blackfriday.New(blackfriday.WithNoExtensions()).Parse([]byte(input))

	var b strings.Builder
	root.Walk(func(node *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		switch node.Type {
		case blackfriday.Text, blackfriday.Code:
			if entering {
				b.WriteString(strings.ReplaceAll(string(node.Literal), "\n", " "))
			}
		case blackfriday.CodeBlock:
			b.Write(node.Literal)
		case blackfriday.Softbreak, blackfriday.Hardbreak:
			b.WriteByte(' ')
		case blackfriday.Paragraph, blackfriday.Heading, blackfriday.Item, blackfriday.BlockQuote:
			if !entering {
				b.WriteByte('\n')
			}
		}
		return blackfriday.GoToNext
	})

	lines := strings.Split(b.String(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
