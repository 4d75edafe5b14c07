package console

import (
	"sort"
	"strings"
)

type node struct {
	cmd      *Command
	children map[string]*node
}

func newRoot() *node { return &node{children: map[string]*node{}} }

func (r *node) add(c Command) {
	cur := r
	for _, tok := range strings.Fields(c.Route) {
		n, ok := cur.children[tok]
		if !ok {
			n = &node{children: map[string]*node{}}
			cur.children[tok] = n
		}
		cur = n
	}
	cur.cmd = &c
}

// match returns the deepest command along tokens and the remaining args, so
// "afk stop" wins over "afk" with one argument.
func (r *node) match(tokens []string) (*Command, []string) {
	var best *Command
	rest := tokens
	cur := r
	for i, tok := range tokens {
		n, ok := cur.children[strings.ToLower(tok)]
		if !ok {
			break
		}
		cur = n
		if n.cmd != nil {
			best = n.cmd
			rest = tokens[i+1:]
		}
	}
	return best, rest
}

func (r *node) commands() []Command {
	var out []Command
	var walk func(n *node)
	walk = func(n *node) {
		if n.cmd != nil {
			out = append(out, *n.cmd)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(r)
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

// tokenize splits a line on whitespace, honouring single or double quotes
// and backslash escapes.
func tokenize(s string) []string {
	var (
		out   []string
		buf   strings.Builder
		inQ   bool
		qChar byte
		esc   bool
	)
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case esc:
			buf.WriteByte(ch)
			esc = false
		case ch == '\\':
			esc = true
		case inQ && ch == qChar:
			inQ = false
		case inQ:
			buf.WriteByte(ch)
		case ch == '"' || ch == '\'':
			inQ, qChar = true, ch
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			flush()
		default:
			buf.WriteByte(ch)
		}
	}
	flush()
	return out
}
