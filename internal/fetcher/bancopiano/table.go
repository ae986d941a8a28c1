package bancopiano

import (
	"bytes"
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var errNoTable = errors.New("bancopiano: no table in page")

// priceColumns are tried in order against the header cells.
var priceColumns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)VENTA\s*T\+?2`),
	regexp.MustCompile(`(?i)VENTA`),
	regexp.MustCompile(`(?i)ÚLTIMO`),
	regexp.MustCompile(`(?i)ULTIMO`),
}

type table struct {
	header []string
	rows   [][]string
}

// parseTable extracts the first <table> of an HTML document.
func parseTable(b []byte) (*table, error) {
	doc, err := html.Parse(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	tn := findFirst(doc, atom.Table)
	if tn == nil {
		return nil, errNoTable
	}
	t := &table{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var cells []string
			hasTH := false
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type != html.ElementNode {
					continue
				}
				switch c.DataAtom {
				case atom.Th:
					hasTH = true
					cells = append(cells, text(c))
				case atom.Td:
					cells = append(cells, text(c))
				}
			}
			switch {
			case len(cells) == 0:
			case hasTH && t.header == nil:
				t.header = cells
			default:
				t.rows = append(t.rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(tn)
	if len(t.rows) == 0 {
		return nil, errNoTable
	}
	return t, nil
}

// priceColumn returns the index of the reference price column or -1.
func (t *table) priceColumn() int {
	for _, re := range priceColumns {
		for i, h := range t.header {
			if re.MatchString(h) {
				return i
			}
		}
	}
	return -1
}

// row finds the row for ticker. An exact first-cell match wins over a
// substring match.
func (t *table) row(ticker string) []string {
	want := strings.ToUpper(ticker)
	var partial []string
	for _, r := range t.rows {
		if len(r) == 0 {
			continue
		}
		first := strings.ToUpper(r[0])
		if first == want {
			return r
		}
		if partial == nil && strings.Contains(first, want) {
			partial = r
		}
	}
	return partial
}

// parseARNumber parses "1.234,56" style numbers.
func parseARNumber(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer("$", "", "%", "", " ", "", "\u00a0", "").Replace(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	return decimal.NewFromString(s)
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
