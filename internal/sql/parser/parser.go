// Package parser implements the Pratt (precedence-climbing) SQL parser
// (C3): a token stream in, an ast.Expression (usually an *ast.Select) out.
// It is grounded on original_source/src/sql/parser.cc for the
// Parse/nextPrecedence loop shape and the precedence table, and on
// spec.md §4.2 for the prefix/infix productions the C++ reference left as
// stubs.
package parser

import (
	"strconv"

	"github.com/dr0pdb/toyquery/internal/errs"
	"github.com/dr0pdb/toyquery/internal/sql/ast"
	"github.com/dr0pdb/toyquery/internal/sql/token"
)

// Precedence levels, per spec.md §4.2's table. AND and OR sit below the
// comparison tier (OR loosest), so "a > 1 AND b <= 2" groups as
// "(a > 1) AND (b <= 2)"; modulus shares the multiplicative tier with '*'
// and '/'.
const (
	precLowest     = 0
	precAsAscDesc  = 10
	precOr         = 20
	precAnd        = 30
	precComparison = 40
	precSum        = 50
	precProduct    = 60
	precCall       = 70
)

// Parser is a Pratt parser over a fixed token slice.
type Parser struct {
	tokens []token.Token
	pos    int
}

// New returns a Parser over tokens, which must end with an EOF token (as
// produced by token.Tokenize).
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseSelect parses sql as a single SELECT statement.
func ParseSelect(sql string) (*ast.Select, error) {
	tokens, err := token.Tokenize(sql)
	if err != nil {
		return nil, err
	}
	p := New(tokens)
	expr, err := p.Parse(precLowest)
	if err != nil {
		return nil, err
	}
	sel, ok := expr.(*ast.Select)
	if !ok {
		return nil, errs.New(errs.InvalidInput, "parser", "expected a SELECT statement")
	}
	if !p.atEOF() {
		return nil, errs.New(errs.InvalidInput, "parser", "unexpected trailing input")
	}
	return sel, nil
}

// Parse parses a single expression, consuming infix operators whose
// precedence is greater than the given threshold. This is the classic
// Pratt-parsing loop: parse one prefix expression, then keep folding in
// infix operators as long as they bind tighter than our caller wants.
func (p *Parser) Parse(precedence int) (ast.Expression, error) {
	expr, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}

	for precedence < p.nextPrecedence() {
		expr, err = p.parseInfix(expr, p.nextPrecedence())
		if err != nil {
			return nil, err
		}
	}
	return expr, nil
}

func (p *Parser) nextPrecedence() int {
	switch p.peek().Type {
	case token.AS, token.ASC, token.DESC:
		return precAsAscDesc
	case token.LESS_THAN, token.LESS_EQUAL, token.GREATER_THAN, token.GREATER_EQUAL,
		token.EQUAL, token.EQUAL_EQUAL, token.NOT_EQUAL:
		return precComparison
	case token.AND:
		return precAnd
	case token.OR:
		return precOr
	case token.PLUS, token.MINUS:
		return precSum
	case token.ASTERISK, token.SLASH, token.PERCENT:
		return precProduct
	case token.LPAREN:
		return precCall
	default:
		return precLowest
	}
}

func (p *Parser) parsePrefix() (ast.Expression, error) {
	tok := p.peek()
	switch tok.Type {
	case token.SELECT:
		return p.parseSelect()
	case token.CAST:
		p.advance()
		return p.parseCast()
	case token.MIN, token.MAX, token.SUM, token.AVG, token.COUNT, token.IDENTIFIER:
		p.advance()
		return &ast.Identifier{Name: tok.Text}, nil
	case token.ASTERISK:
		// A bare '*' only ever appears as a projection-list item
		// (SELECT * FROM t); there is no unary-multiply production, so
		// seeing it in prefix position unambiguously means the wildcard.
		p.advance()
		return &ast.Star{}, nil
	case token.STRING:
		p.advance()
		return &ast.String{Value: tok.Text}, nil
	case token.LONG:
		p.advance()
		v, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return nil, errs.Wrap(errs.OutOfRange, "parser", "integer literal out of range: "+tok.Text, err)
		}
		return &ast.Long{Value: v}, nil
	case token.DOUBLE:
		p.advance()
		v, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidInput, "parser", "invalid double literal: "+tok.Text, err)
		}
		return &ast.Double{Value: v}, nil
	case token.TRUE:
		p.advance()
		return &ast.Long{Value: 1}, nil
	case token.FALSE:
		p.advance()
		return &ast.Long{Value: 0}, nil
	default:
		return nil, errs.New(errs.InvalidInput, "parser", "unexpected token '"+tok.Text+"' at offset "+strconv.Itoa(tok.Offset))
	}
}

func (p *Parser) parseInfix(left ast.Expression, precedence int) (ast.Expression, error) {
	tok := p.peek()

	if op, ok := binaryOpText(tok.Type); ok {
		p.advance()
		right, err := p.Parse(precedence)
		if err != nil {
			return nil, err
		}
		return &ast.BinaryOp{Left: left, Op: op, Right: right}, nil
	}

	switch tok.Type {
	case token.AS:
		p.advance()
		name, err := p.expect(token.IDENTIFIER)
		if err != nil {
			return nil, err
		}
		return &ast.Alias{Expr: left, Alias: &ast.Identifier{Name: name.Text}}, nil
	case token.ASC:
		p.advance()
		return &ast.Sort{Expr: left, Asc: true}, nil
	case token.DESC:
		p.advance()
		return &ast.Sort{Expr: left, Asc: false}, nil
	case token.LPAREN:
		return p.parseFunctionCall(left)
	default:
		return nil, errs.New(errs.InvalidInput, "parser", "unexpected token '"+tok.Text+"' in infix position")
	}
}

func binaryOpText(t token.Type) (string, bool) {
	switch t {
	case token.PLUS:
		return "+", true
	case token.MINUS:
		return "-", true
	case token.ASTERISK:
		return "*", true
	case token.SLASH:
		return "/", true
	case token.PERCENT:
		return "%", true
	case token.EQUAL, token.EQUAL_EQUAL:
		return "=", true
	case token.NOT_EQUAL:
		return "!=", true
	case token.LESS_THAN:
		return "<", true
	case token.LESS_EQUAL:
		return "<=", true
	case token.GREATER_THAN:
		return ">", true
	case token.GREATER_EQUAL:
		return ">=", true
	case token.AND:
		return "AND", true
	case token.OR:
		return "OR", true
	default:
		return "", false
	}
}

func (p *Parser) parseFunctionCall(left ast.Expression) (ast.Expression, error) {
	ident, ok := left.(*ast.Identifier)
	if !ok {
		return nil, errs.New(errs.InvalidInput, "parser", "expected identifier before function call")
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}

	var args []ast.Expression
	if p.peek().Type != token.RPAREN {
		for {
			arg, err := p.Parse(precLowest)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().Type != token.COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return &ast.Function{Name: ident.Name, Args: args}, nil
}

// parseCast parses the parenthesized "(expr AS type)" tail of a CAST
// expression. It reuses the AS-alias infix production: parsing the inner
// expression at precLowest naturally consumes "AS type" into an *ast.Alias,
// which is then reinterpreted as the cast's target type.
func (p *Parser) parseCast() (ast.Expression, error) {
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	inner, err := p.Parse(precLowest)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	alias, ok := inner.(*ast.Alias)
	if !ok {
		return nil, errs.New(errs.InvalidInput, "parser", "CAST requires \"expr AS type\"")
	}
	return &ast.Cast{Expr: alias.Expr, DataType: alias.Alias}, nil
}

func (p *Parser) parseSelect() (ast.Expression, error) {
	p.advance() // SELECT

	projection, err := p.parseExpressionList()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(token.FROM); err != nil {
		return nil, err
	}
	table, err := p.expect(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}

	sel := &ast.Select{Projection: projection, TableName: table.Text}

	if p.peek().Type == token.WHERE {
		p.advance()
		expr, err := p.Parse(precLowest)
		if err != nil {
			return nil, err
		}
		sel.Selection = expr
	}

	if p.peek().Type == token.GROUP {
		p.advance()
		if _, err := p.expect(token.BY); err != nil {
			return nil, err
		}
		groupBy, err := p.parseExpressionList()
		if err != nil {
			return nil, err
		}
		sel.GroupBy = groupBy
	}

	if p.peek().Type == token.HAVING {
		p.advance()
		expr, err := p.Parse(precLowest)
		if err != nil {
			return nil, err
		}
		sel.Having = expr
	}

	if p.peek().Type == token.ORDER {
		p.advance()
		if _, err := p.expect(token.BY); err != nil {
			return nil, err
		}
		items, err := p.parseExpressionList()
		if err != nil {
			return nil, err
		}
		sorts := make([]*ast.Sort, len(items))
		for i, item := range items {
			if s, ok := item.(*ast.Sort); ok {
				sorts[i] = s
			} else {
				sorts[i] = &ast.Sort{Expr: item, Asc: true}
			}
		}
		sel.OrderBy = sorts
	}

	return sel, nil
}

func (p *Parser) parseExpressionList() ([]ast.Expression, error) {
	var exprs []ast.Expression
	for {
		expr, err := p.Parse(precLowest)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
		if p.peek().Type != token.COMMA {
			return exprs, nil
		}
		p.advance()
	}
}

func (p *Parser) peek() token.Token {
	return p.tokens[p.pos]
}

func (p *Parser) advance() token.Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) atEOF() bool {
	return p.peek().Type == token.EOF
}

func (p *Parser) expect(t token.Type) (token.Token, error) {
	tok := p.peek()
	if tok.Type != t {
		return token.Token{}, errs.New(errs.InvalidInput, "parser", "unexpected token '"+tok.Text+"' at offset "+strconv.Itoa(tok.Offset))
	}
	p.advance()
	return tok, nil
}
