package view

import (
	"fmt"
	"strings"

	"github.com/airenas/transcript-workbench/internal/api"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ExtractSentences reads sentences back from the markup rendered by Sentences,
// possibly edited in the browser. Labels are read from data attributes
func ExtractSentences(markup string) ([]api.Sentence, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	res := []api.Sentence{}
	for _, n := range nodes {
		walk(n, func(n *html.Node) bool {
			if n.Type == html.ElementNode && n.DataAtom == atom.Li {
				if s, ok := extractSentence(n); ok {
					res = append(res, s)
				}
				return false
			}
			return true
		})
	}
	return res, nil
}

func extractSentence(li *html.Node) (api.Sentence, bool) {
	textEl := find(li, func(n *html.Node) bool { return hasClass(n, "sentence-text") })
	if textEl == nil {
		return api.Sentence{}, false
	}
	res := api.Sentence{SpecificUncertainWord: []string{}}
	res.Text = strings.TrimSpace(innerText(textEl))
	res.IsUncertain = hasClass(li, "uncertain-sentence") || hasClass(textEl, "uncertain-sentence")
	res.HasMedicalTerminology = find(textEl, func(n *html.Node) bool { return hasClass(n, "medical-icon") }) != nil
	seen := map[string]bool{}
	walk(textEl, func(n *html.Node) bool {
		if hasClass(n, "uncertain-word") {
			// every occurrence is highlighted, keep the word once
			w := textContent(n)
			if k := strings.ToLower(w); !seen[k] {
				seen[k] = true
				res.SpecificUncertainWord = append(res.SpecificUncertainWord, w)
			}
			return false
		}
		return true
	})
	if l := find(li, func(n *html.Node) bool { return attr(n, "data-type") == "med" }); l != nil {
		res.BestModelForMedicalTerminology = attr(l, "data-value")
	}
	if l := find(li, func(n *html.Node) bool { return attr(n, "data-type") == "speech" }); l != nil {
		res.BestEverydaySpeech = attr(l, "data-value")
	}
	return res, true
}

// walk visits n and its descendants, f returns false to skip children
func walk(n *html.Node, f func(*html.Node) bool) {
	if !f(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, f)
	}
}

func find(n *html.Node, f func(*html.Node) bool) *html.Node {
	var res *html.Node
	walk(n, func(n *html.Node) bool {
		if res != nil {
			return false
		}
		if f(n) {
			res = n
			return false
		}
		return true
	})
	return res
}

func attr(n *html.Node, key string) string {
	if n.Type != html.ElementNode {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		return true
	})
	return b.String()
}

// innerText is the visible sentence text: the medical icon is skipped,
// line breaks and block elements produced by contenteditable become new lines
func innerText(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		switch {
		case c.Type == html.TextNode:
			b.WriteString(c.Data)
		case hasClass(c, "medical-icon"):
			return false
		case c.DataAtom == atom.Br:
			b.WriteString("\n")
		case c != n && (c.DataAtom == atom.Div || c.DataAtom == atom.P) && b.Len() > 0:
			b.WriteString("\n")
		}
		return true
	})
	return b.String()
}
