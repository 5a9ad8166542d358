// CLAUDE:SUMMARY Ranked heuristics (id, class, class set, name, short text, distinguishing attributes) verified against the live document before falling back to FullPath.
package xpathgen

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/hazyhaar/superx/dom"
)

// Classes added to page elements by the highlighter. They never appear in a
// generated expression.
const (
	HoverClass = "xpath-highlight"
	MatchClass = "xpath-query-match"
)

// DefaultTextLimit is the exclusive rune ceiling for the text heuristic.
const DefaultTextLimit = 50

// DefaultAttributes are tried in order by the attribute heuristic.
var DefaultAttributes = []string{"type", "role", "aria-label", "data-testid"}

// Strategy names the heuristic that produced an optimized path.
type Strategy string

const (
	StrategyNone      Strategy = ""
	StrategyID        Strategy = "id"
	StrategyClass     Strategy = "class"
	StrategyClasses   Strategy = "classes"
	StrategyName      Strategy = "name"
	StrategyText      Strategy = "text"
	StrategyAttribute Strategy = "attribute"
	StrategyFull      Strategy = "full"
)

// Result is an optimized path with the strategy that produced it.
type Result struct {
	Path     string   `json:"path"`
	Strategy Strategy `json:"strategy"`
}

// Optimizer produces short unique expressions. It is immutable once built
// and safe for concurrent use.
type Optimizer struct {
	excluded   map[string]bool
	textLimit  int
	attributes []string
	logger     *slog.Logger
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithExcludedClasses adds class names to skip on top of HoverClass and
// MatchClass.
func WithExcludedClasses(classes ...string) Option {
	return func(o *Optimizer) {
		for _, c := range classes {
			o.excluded[c] = true
		}
	}
}

// WithTextLimit sets the exclusive rune ceiling for the text heuristic.
func WithTextLimit(n int) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.textLimit = n
		}
	}
}

// WithAttributes replaces the attribute list tried by the attribute heuristic.
func WithAttributes(attrs ...string) Option {
	return func(o *Optimizer) {
		if len(attrs) > 0 {
			o.attributes = append([]string(nil), attrs...)
		}
	}
}

// WithLogger sets the logger used for rejected candidates.
func WithLogger(l *slog.Logger) Option {
	return func(o *Optimizer) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOptimizer builds an Optimizer with the default heuristics.
func NewOptimizer(opts ...Option) *Optimizer {
	o := &Optimizer{
		excluded:   map[string]bool{HoverClass: true, MatchClass: true},
		textLimit:  DefaultTextLimit,
		attributes: DefaultAttributes,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

var defaultOptimizer = NewOptimizer()

// OptimizedPath returns the shortest verified expression for n using the
// default Optimizer. nil yields "".
func OptimizedPath(n *html.Node) string {
	return defaultOptimizer.Path(n)
}

// Path returns the optimized expression for n.
func (o *Optimizer) Path(n *html.Node) string {
	return o.Explain(n).Path
}

// Explain returns the optimized expression for n and the heuristic that
// produced it. Candidates are accepted only when they resolve to n alone.
func (o *Optimizer) Explain(n *html.Node) Result {
	if n == nil {
		return Result{}
	}
	if n.Type != html.ElementNode {
		return Result{Path: FullPath(n), Strategy: StrategyFull}
	}
	if id := dom.ID(n); id != "" {
		return Result{Path: idSelector(id), Strategy: StrategyID}
	}

	doc := dom.Root(n)
	accept := func(expr string) bool {
		ms := Evaluate(expr, doc)
		if ms.Err != nil {
			o.logger.Debug("xpathgen: candidate rejected", "expr", expr, "error", ms.Err)
			return false
		}
		return ms.Unique(n)
	}

	classes := o.filterClasses(dom.Classes(n))
	for _, c := range classes {
		if expr := "//*[" + classTest(c) + "]"; accept(expr) {
			return Result{Path: expr, Strategy: StrategyClass}
		}
	}
	if len(classes) > 1 {
		tests := make([]string, len(classes))
		for i, c := range classes {
			tests[i] = classTest(c)
		}
		if expr := "//*[" + strings.Join(tests, " and ") + "]"; accept(expr) {
			return Result{Path: expr, Strategy: StrategyClasses}
		}
	}

	if dom.HasAttr(n, "name") {
		if expr := "//*[@name=" + Literal(dom.Attr(n, "name")) + "]"; accept(expr) {
			return Result{Path: expr, Strategy: StrategyName}
		}
	}

	if text := strings.TrimSpace(dom.TextContent(n)); text != "" && utf8.RuneCountInString(text) < o.textLimit {
		if expr := "//" + nameTest(n.Data) + "[contains(text(), " + Literal(text) + ")]"; accept(expr) {
			return Result{Path: expr, Strategy: StrategyText}
		}
	}

	for _, attr := range o.attributes {
		if !dom.HasAttr(n, attr) {
			continue
		}
		if expr := "//" + nameTest(n.Data) + "[@" + attr + "=" + Literal(dom.Attr(n, attr)) + "]"; accept(expr) {
			return Result{Path: expr, Strategy: StrategyAttribute}
		}
	}

	return Result{Path: FullPath(n), Strategy: StrategyFull}
}

// filterClasses drops excluded names and repeated tokens, keeping order.
func (o *Optimizer) filterClasses(classes []string) []string {
	seen := make(map[string]bool, len(classes))
	out := classes[:0:0]
	for _, c := range classes {
		if o.excluded[c] || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// classTest matches elements whose class attribute holds token c.
func classTest(c string) string {
	return `contains(concat(" ", normalize-space(@class), " "), ` + Literal(" "+c+" ") + `)`
}
