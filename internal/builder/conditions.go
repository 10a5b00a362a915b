package builder

import "strings"

// conditionClause accumulates a WHERE, HAVING or ON condition list.
type conditionClause struct {
	sql string
	// offsets of open groups, used to drop empty "()" groups
	groups []int
}

func (c *conditionClause) empty() bool {
	return c.render() == ""
}

func (c *conditionClause) add(fragment, connector string) {
	switch {
	case c.sql == "":
		c.sql = fragment
	case strings.HasSuffix(c.sql, "("):
		c.sql += fragment
	default:
		c.sql += " " + connector + " " + fragment
	}
}

func (c *conditionClause) open(connector string) {
	c.groups = append(c.groups, len(c.sql))
	switch {
	case c.sql == "", strings.HasSuffix(c.sql, "("):
		c.sql += "("
	default:
		c.sql += " " + connector + " ("
	}
}

func (c *conditionClause) close() {
	if len(c.groups) == 0 {
		return
	}
	start := c.groups[len(c.groups)-1]
	c.groups = c.groups[:len(c.groups)-1]

	if strings.HasSuffix(c.sql, "(") {
		c.sql = c.sql[:start]
		return
	}
	c.sql += ")"
}

// render returns the condition list with unclosed groups closed and
// unclosed empty groups dropped.
func (c *conditionClause) render() string {
	sql := c.sql
	for i := len(c.groups) - 1; i >= 0; i-- {
		if strings.HasSuffix(sql, "(") {
			sql = sql[:c.groups[i]]
		} else {
			sql += ")"
		}
	}
	return sql
}

// joinClause is one JOIN with its ON or USING constraint.
type joinClause struct {
	join  string
	on    conditionClause
	using string
}

func (j *joinClause) render() string {
	switch {
	case !j.on.empty():
		return j.join + " ON " + j.on.render()
	case j.using != "":
		return j.join + " USING (" + j.using + ")"
	}
	return j.join
}

func condition(left, operator, right string) string {
	return left + " " + operator + " " + right
}

func negated(negate bool, operator string) string {
	if negate {
		return "NOT " + operator
	}
	return operator
}

func (b *DMLQueryBuilder) connector() string {
	c := b.nextConnector
	b.nextConnector = ""
	if c == "" {
		return "AND"
	}
	return c
}

func (b *DMLQueryBuilder) addCondition(target *conditionClause, fragment string) *DMLQueryBuilder {
	if target == nil {
		b.nextConnector = ""
		return b
	}
	target.add(fragment, b.connector())
	return b
}

// onTarget returns the constraint list of the latest join, or nil.
func (b *DMLQueryBuilder) onTarget() *conditionClause {
	if len(b.joins) == 0 {
		return nil
	}
	return &b.joins[len(b.joins)-1].on
}

// Or joins the next condition with OR instead of AND.
func (b *DMLQueryBuilder) Or() *DMLQueryBuilder {
	b.nextConnector = "OR"
	return b
}

// And joins the next condition with AND. This is the default.
func (b *DMLQueryBuilder) And() *DMLQueryBuilder {
	b.nextConnector = "AND"
	return b
}

// Where adds "left operator right". The operator defaults to "=".
func (b *DMLQueryBuilder) Where(left, right string, operator ...string) *DMLQueryBuilder {
	return b.addCondition(&b.where, condition(left, operatorOrEquals(operator), right))
}

// WhereLike adds "left [NOT] LIKE right".
func (b *DMLQueryBuilder) WhereLike(left, right string, negate bool) *DMLQueryBuilder {
	return b.addCondition(&b.where, condition(left, negated(negate, "LIKE"), right))
}

// WhereIn adds "left [NOT] IN right"; right is a rendered list or sub-query.
func (b *DMLQueryBuilder) WhereIn(left, right string, negate bool) *DMLQueryBuilder {
	return b.addCondition(&b.where, condition(left, negated(negate, "IN"), right))
}

// WhereBetween adds "left [NOT] BETWEEN lower AND upper".
func (b *DMLQueryBuilder) WhereBetween(left, lower, upper string, negate bool) *DMLQueryBuilder {
	return b.addCondition(&b.where, condition(left, negated(negate, "BETWEEN"), lower+" AND "+upper))
}

// WhereRegexp adds a regular expression match using the dialect operator.
func (b *DMLQueryBuilder) WhereRegexp(left, right string, negate bool) *DMLQueryBuilder {
	return b.addCondition(&b.where, condition(left, b.dialect.RegexpOperator(negate), right))
}

// WhereNull adds "left IS [NOT] NULL".
func (b *DMLQueryBuilder) WhereNull(left string, negate bool) *DMLQueryBuilder {
	return b.addCondition(&b.where, left+" "+nullCheck(negate))
}

// StartWhereGroup opens a parenthesized group in the WHERE clause.
func (b *DMLQueryBuilder) StartWhereGroup() *DMLQueryBuilder {
	b.where.open(b.connector())
	return b
}

// EndWhereGroup closes the innermost WHERE group.
func (b *DMLQueryBuilder) EndWhereGroup() *DMLQueryBuilder {
	b.where.close()
	return b
}

// Having adds "left operator right" to HAVING. The operator defaults to "=".
func (b *DMLQueryBuilder) Having(left, right string, operator ...string) *DMLQueryBuilder {
	return b.addCondition(&b.having, condition(left, operatorOrEquals(operator), right))
}

// HavingLike adds "left [NOT] LIKE right" to HAVING.
func (b *DMLQueryBuilder) HavingLike(left, right string, negate bool) *DMLQueryBuilder {
	return b.addCondition(&b.having, condition(left, negated(negate, "LIKE"), right))
}

// HavingIn adds "left [NOT] IN right" to HAVING.
func (b *DMLQueryBuilder) HavingIn(left, right string, negate bool) *DMLQueryBuilder {
	return b.addCondition(&b.having, condition(left, negated(negate, "IN"), right))
}

// HavingBetween adds "left [NOT] BETWEEN lower AND upper" to HAVING.
func (b *DMLQueryBuilder) HavingBetween(left, lower, upper string, negate bool) *DMLQueryBuilder {
	return b.addCondition(&b.having, condition(left, negated(negate, "BETWEEN"), lower+" AND "+upper))
}

// HavingRegexp adds a regular expression match to HAVING.
func (b *DMLQueryBuilder) HavingRegexp(left, right string, negate bool) *DMLQueryBuilder {
	return b.addCondition(&b.having, condition(left, b.dialect.RegexpOperator(negate), right))
}

// HavingNull adds "left IS [NOT] NULL" to HAVING.
func (b *DMLQueryBuilder) HavingNull(left string, negate bool) *DMLQueryBuilder {
	return b.addCondition(&b.having, left+" "+nullCheck(negate))
}

// StartHavingGroup opens a parenthesized group in the HAVING clause.
func (b *DMLQueryBuilder) StartHavingGroup() *DMLQueryBuilder {
	b.having.open(b.connector())
	return b
}

// EndHavingGroup closes the innermost HAVING group.
func (b *DMLQueryBuilder) EndHavingGroup() *DMLQueryBuilder {
	b.having.close()
	return b
}

// On adds a join constraint to the latest join. Without a join it is ignored.
func (b *DMLQueryBuilder) On(left, right string, operator ...string) *DMLQueryBuilder {
	return b.addCondition(b.onTarget(), condition(left, operatorOrEquals(operator), right))
}

// OnLike adds "left [NOT] LIKE right" to the latest join.
func (b *DMLQueryBuilder) OnLike(left, right string, negate bool) *DMLQueryBuilder {
	return b.addCondition(b.onTarget(), condition(left, negated(negate, "LIKE"), right))
}

// OnIn adds "left [NOT] IN right" to the latest join.
func (b *DMLQueryBuilder) OnIn(left, right string, negate bool) *DMLQueryBuilder {
	return b.addCondition(b.onTarget(), condition(left, negated(negate, "IN"), right))
}

// OnBetween adds "left [NOT] BETWEEN lower AND upper" to the latest join.
func (b *DMLQueryBuilder) OnBetween(left, lower, upper string, negate bool) *DMLQueryBuilder {
	return b.addCondition(b.onTarget(), condition(left, negated(negate, "BETWEEN"), lower+" AND "+upper))
}

// OnRegexp adds a regular expression match to the latest join.
func (b *DMLQueryBuilder) OnRegexp(left, right string, negate bool) *DMLQueryBuilder {
	return b.addCondition(b.onTarget(), condition(left, b.dialect.RegexpOperator(negate), right))
}

// OnNull adds "left IS [NOT] NULL" to the latest join.
func (b *DMLQueryBuilder) OnNull(left string, negate bool) *DMLQueryBuilder {
	return b.addCondition(b.onTarget(), left+" "+nullCheck(negate))
}

// StartOnGroup opens a parenthesized group in the latest join constraint.
func (b *DMLQueryBuilder) StartOnGroup() *DMLQueryBuilder {
	connector := b.connector()
	if on := b.onTarget(); on != nil {
		on.open(connector)
	}
	return b
}

// EndOnGroup closes the innermost group of the latest join constraint.
func (b *DMLQueryBuilder) EndOnGroup() *DMLQueryBuilder {
	if on := b.onTarget(); on != nil {
		on.close()
	}
	return b
}

func operatorOrEquals(operator []string) string {
	if len(operator) == 0 || strings.TrimSpace(operator[0]) == "" {
		return "="
	}
	return strings.TrimSpace(operator[0])
}

func nullCheck(negate bool) string {
	if negate {
		return "IS NOT NULL"
	}
	return "IS NULL"
}
