// Package sqlexpr is a small SQL expression tree with a single renderer.
//
// Condition logic is assembled from typed nodes instead of string
// concatenation: raw user fragments, comparisons, conjunctions, disjunctions,
// negations, CASE expressions and function calls. Render produces the SQL text.
//
// An empty And renders as "1 = 1" and an empty Or as "1 = 0", so callers can
// combine any subset of conditions, including none. And, Or and Not fold
// these constants as they are built.
package sqlexpr

import (
	"strconv"
	"strings"
)

// Expr is a node of the expression tree.
type Expr interface {
	write(b *strings.Builder, parent kind)
}

type kind int

const (
	kindTop kind = iota
	kindAnd
	kindOr
	kindNot
	kindCompare
	kindArg
)

// Render returns the SQL text for e.
func Render(e Expr) string {
	var b strings.Builder
	e.write(&b, kindTop)
	return b.String()
}

type rawExpr struct{ sql string }

// Raw wraps a user supplied SQL fragment. It is parenthesized whenever it is
// composed with other nodes.
func Raw(sql string) Expr {
	return rawExpr{sql: strings.TrimSpace(sql)}
}

func (r rawExpr) write(b *strings.Builder, parent kind) {
	if parent == kindTop || parent == kindArg {
		b.WriteString(r.sql)
		return
	}
	b.WriteString("(")
	b.WriteString(r.sql)
	b.WriteString(")")
}

type identExpr struct{ name string }

// Ident is a column or table reference, written verbatim.
func Ident(name string) Expr {
	return identExpr{name: name}
}

func (i identExpr) write(b *strings.Builder, _ kind) {
	b.WriteString(i.name)
}

type intExpr struct{ v int64 }

// Int is an integer literal.
func Int(v int64) Expr {
	return intExpr{v: v}
}

func (i intExpr) write(b *strings.Builder, _ kind) {
	b.WriteString(strconv.FormatInt(i.v, 10))
}

type stringExpr struct{ v string }

// String is a single-quoted string literal.
func String(v string) Expr {
	return stringExpr{v: v}
}

func (s stringExpr) write(b *strings.Builder, _ kind) {
	b.WriteString("'")
	b.WriteString(strings.ReplaceAll(s.v, "'", "''"))
	b.WriteString("'")
}

type compareExpr struct {
	left  Expr
	op    string
	right Expr
}

// Compare builds "left op right".
func Compare(left Expr, op string, right Expr) Expr {
	return compareExpr{left: left, op: op, right: right}
}

// Eq builds "left = right".
func Eq(left, right Expr) Expr {
	return Compare(left, "=", right)
}

func (c compareExpr) write(b *strings.Builder, _ kind) {
	c.left.write(b, kindCompare)
	b.WriteString(" ")
	b.WriteString(c.op)
	b.WriteString(" ")
	c.right.write(b, kindCompare)
}

type boolExpr struct {
	op    kind
	terms []Expr
}

// And is the conjunction of terms. Empty And terms are dropped and an empty
// Or term makes the whole conjunction an empty Or.
func And(terms ...Expr) Expr {
	if hasEmpty(kindOr, terms) {
		return boolExpr{op: kindOr}
	}
	return boolExpr{op: kindAnd, terms: dropEmpty(kindAnd, terms)}
}

// Or is the disjunction of terms. Empty Or terms are dropped and an empty
// And term makes the whole disjunction an empty And.
func Or(terms ...Expr) Expr {
	if hasEmpty(kindAnd, terms) {
		return boolExpr{op: kindAnd}
	}
	return boolExpr{op: kindOr, terms: dropEmpty(kindOr, terms)}
}

// IsTrue reports whether e is an empty And.
func IsTrue(e Expr) bool { return isEmpty(kindAnd, e) }

// IsFalse reports whether e is an empty Or.
func IsFalse(e Expr) bool { return isEmpty(kindOr, e) }

func isEmpty(op kind, e Expr) bool {
	be, ok := e.(boolExpr)
	return ok && be.op == op && len(be.terms) == 0
}

func hasEmpty(op kind, terms []Expr) bool {
	for _, t := range terms {
		if isEmpty(op, t) {
			return true
		}
	}
	return false
}

// dropEmpty removes identity elements: an empty And inside And, an empty Or inside Or.
func dropEmpty(op kind, terms []Expr) []Expr {
	out := make([]Expr, 0, len(terms))
	for _, t := range terms {
		if isEmpty(op, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (e boolExpr) write(b *strings.Builder, parent kind) {
	if len(e.terms) == 0 {
		if e.op == kindAnd {
			b.WriteString("1 = 1")
		} else {
			b.WriteString("1 = 0")
		}
		return
	}
	if len(e.terms) == 1 {
		e.terms[0].write(b, parent)
		return
	}
	wrap := parent != kindTop && parent != kindArg && parent != e.op
	if wrap {
		b.WriteString("(")
	}
	sep := " AND "
	if e.op == kindOr {
		sep = " OR "
	}
	for i, t := range e.terms {
		if i > 0 {
			b.WriteString(sep)
		}
		t.write(b, e.op)
	}
	if wrap {
		b.WriteString(")")
	}
}

type notExpr struct{ inner Expr }

// Not negates e. The negation of an empty And is an empty Or and vice versa.
func Not(e Expr) Expr {
	switch {
	case IsTrue(e):
		return Or()
	case IsFalse(e):
		return And()
	}
	return notExpr{inner: e}
}

func (n notExpr) write(b *strings.Builder, _ kind) {
	b.WriteString("NOT (")
	n.inner.write(b, kindArg)
	b.WriteString(")")
}

// When is one WHEN/THEN arm of a CASE expression.
type When struct {
	Cond Expr
	Then Expr
}

type caseExpr struct {
	whens []When
	els   Expr
}

// Case builds a searched CASE expression. els may be nil.
func Case(whens []When, els Expr) Expr {
	return caseExpr{whens: whens, els: els}
}

// Flag builds "CASE WHEN cond THEN 1 ELSE 0 END".
func Flag(cond Expr) Expr {
	return Case([]When{{Cond: cond, Then: Int(1)}}, Int(0))
}

func (c caseExpr) write(b *strings.Builder, _ kind) {
	b.WriteString("CASE")
	for _, w := range c.whens {
		b.WriteString(" WHEN ")
		w.Cond.write(b, kindArg)
		b.WriteString(" THEN ")
		w.Then.write(b, kindArg)
	}
	if c.els != nil {
		b.WriteString(" ELSE ")
		c.els.write(b, kindArg)
	}
	b.WriteString(" END")
}

type funcExpr struct {
	name string
	args []Expr
}

// Func builds name(args...).
func Func(name string, args ...Expr) Expr {
	return funcExpr{name: name, args: args}
}

// Sum builds SUM(e).
func Sum(e Expr) Expr { return Func("SUM", e) }

// Max builds MAX(e).
func Max(e Expr) Expr { return Func("MAX", e) }

// CountAll builds COUNT(*).
func CountAll() Expr { return Func("COUNT", Ident("*")) }

// Coalesce builds COALESCE(args...).
func Coalesce(args ...Expr) Expr { return Func("COALESCE", args...) }

func (f funcExpr) write(b *strings.Builder, _ kind) {
	b.WriteString(f.name)
	b.WriteString("(")
	for i, a := range f.args {
		if i > 0 {
			b.WriteString(", ")
		}
		a.write(b, kindArg)
	}
	b.WriteString(")")
}

// Column is a select-list item.
type Column struct {
	Expr Expr
	As   string
}

// RenderColumn renders "expr AS alias" (or just expr when As is empty).
func RenderColumn(c Column) string {
	s := Render(c.Expr)
	if c.As == "" {
		return s
	}
	return s + " AS " + c.As
}

// Count builds the common "number of rows where cond holds" aggregate:
// COALESCE(SUM(CASE WHEN cond THEN 1 ELSE 0 END), 0).
func Count(cond Expr) Expr {
	return Coalesce(Sum(Flag(cond)), Int(0))
}
