package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dr0pdb/toyquery/internal/errs"
	"github.com/dr0pdb/toyquery/internal/sql/ast"
)

func TestParseSelectColumnList(t *testing.T) {
	sel, err := ParseSelect(`SELECT id, name FROM users`)
	require.NoError(t, err)
	require.Len(t, sel.Projection, 2)
	assert.Equal(t, "id", sel.Projection[0].(*ast.Identifier).Name)
	assert.Equal(t, "name", sel.Projection[1].(*ast.Identifier).Name)
	assert.Equal(t, "users", sel.TableName)
	assert.Nil(t, sel.Selection)
}

func TestParseWildcardProjection(t *testing.T) {
	sel, err := ParseSelect(`SELECT * FROM users`)
	require.NoError(t, err)
	require.Len(t, sel.Projection, 1)
	_, ok := sel.Projection[0].(*ast.Star)
	assert.True(t, ok)
}

func TestParseWhereBinaryPrecedence(t *testing.T) {
	sel, err := ParseSelect(`SELECT id FROM users WHERE age > 10 AND balance <= 5.5`)
	require.NoError(t, err)

	top, ok := sel.Selection.(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "AND", top.Op)

	left, ok := top.Left.(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, ">", left.Op)

	right, ok := top.Right.(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "<=", right.Op)
}

func TestParseArithmeticPrecedence(t *testing.T) {
	sel, err := ParseSelect(`SELECT a + b * c FROM t`)
	require.NoError(t, err)

	top, ok := sel.Projection[0].(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "+", top.Op)

	right, ok := top.Right.(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "*", right.Op)
}

func TestParseAliasAndFunctionCall(t *testing.T) {
	sel, err := ParseSelect(`SELECT MAX(age) AS oldest FROM people`)
	require.NoError(t, err)

	alias, ok := sel.Projection[0].(*ast.Alias)
	require.True(t, ok)
	assert.Equal(t, "oldest", alias.Alias.Name)

	fn, ok := alias.Expr.(*ast.Function)
	require.True(t, ok)
	assert.Equal(t, "MAX", fn.Name)
	require.Len(t, fn.Args, 1)
	assert.Equal(t, "age", fn.Args[0].(*ast.Identifier).Name)
}

func TestParseCast(t *testing.T) {
	sel, err := ParseSelect(`SELECT CAST(age AS DOUBLE) FROM people`)
	require.NoError(t, err)

	cast, ok := sel.Projection[0].(*ast.Cast)
	require.True(t, ok)
	assert.Equal(t, "age", cast.Expr.(*ast.Identifier).Name)
	assert.Equal(t, "DOUBLE", cast.DataType.Name)
}

func TestParseGroupByHavingOrderBy(t *testing.T) {
	sel, err := ParseSelect(`SELECT dept, SUM(salary) FROM emp GROUP BY dept HAVING SUM(salary) > 100 ORDER BY dept DESC`)
	require.NoError(t, err)

	require.Len(t, sel.GroupBy, 1)
	assert.Equal(t, "dept", sel.GroupBy[0].(*ast.Identifier).Name)

	having, ok := sel.Having.(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, ">", having.Op)

	require.Len(t, sel.OrderBy, 1)
	assert.False(t, sel.OrderBy[0].Asc)
	assert.Equal(t, "dept", sel.OrderBy[0].Expr.(*ast.Identifier).Name)
}

func TestParseOrderByDefaultsAscending(t *testing.T) {
	sel, err := ParseSelect(`SELECT id FROM t ORDER BY id`)
	require.NoError(t, err)
	require.Len(t, sel.OrderBy, 1)
	assert.True(t, sel.OrderBy[0].Asc)
}

func TestParseLiterals(t *testing.T) {
	sel, err := ParseSelect(`SELECT 1, 2.5, "x" FROM t`)
	require.NoError(t, err)
	require.Len(t, sel.Projection, 3)
	assert.Equal(t, int64(1), sel.Projection[0].(*ast.Long).Value)
	assert.Equal(t, 2.5, sel.Projection[1].(*ast.Double).Value)
	assert.Equal(t, "x", sel.Projection[2].(*ast.String).Value)
}

func TestParseMissingFromIsError(t *testing.T) {
	_, err := ParseSelect(`SELECT id`)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidInput))
}

func TestParseTrailingGarbageIsError(t *testing.T) {
	_, err := ParseSelect(`SELECT id FROM t )`)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidInput))
}

func TestParseFunctionCallOnNonIdentifierIsError(t *testing.T) {
	_, err := ParseSelect(`SELECT 1(2) FROM t`)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidInput))
}
