package svg

import (
	"bytes"
	"errors"
	"regexp"
)

var ErrNotSVG = errors.New("not an svg document")

var (
	doctypePattern       = regexp.MustCompile(`(?is)<!DOCTYPE[^\[>]*(\[.*?\])?\s*>`)
	scriptTagPattern     = regexp.MustCompile(`(?is)<\s*script[\s>].*?<\s*/\s*script\s*>`)
	foreignObjectPattern = regexp.MustCompile(`(?is)<\s*foreignObject[\s>].*?<\s*/\s*foreignObject\s*>`)
	embedTagPattern      = regexp.MustCompile(`(?is)<\s*(iframe|embed|object)[\s>].*?(<\s*/\s*(iframe|embed|object)\s*>|/>)`)
	eventAttrPattern     = regexp.MustCompile(`(?is)\son[a-z]+\s*=\s*("[^"]*"|'[^']*')`)
	activeHrefPattern    = regexp.MustCompile(`(?is)\s(?:xlink:)?href\s*=\s*("\s*(?:javascript|data:text/html)[^"]*"|'\s*(?:javascript|data:text/html)[^']*')`)
)

// Sanitize strips doctypes, scripts, embedded documents, event handlers and active links
// from an uploaded SVG photo.
func Sanitize(input []byte) ([]byte, error) {
	if !bytes.Contains(bytes.ToLower(input), []byte("<svg")) {
		return nil, ErrNotSVG
	}

	clean := doctypePattern.ReplaceAll(input, nil)
	clean = scriptTagPattern.ReplaceAll(clean, nil)
	clean = foreignObjectPattern.ReplaceAll(clean, nil)
	clean = embedTagPattern.ReplaceAll(clean, nil)
	clean = eventAttrPattern.ReplaceAll(clean, nil)
	clean = activeHrefPattern.ReplaceAll(clean, nil)

	return clean, nil
}
