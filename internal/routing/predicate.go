package routing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PredicateKind selects which matching strategy a predicate uses.
// Params: constants for literal, one-of and comparison predicates.
// Returns: tag consumed by Predicate.Match.
type PredicateKind string

const (
	// KindLiteral matches one exact field value.
	KindLiteral PredicateKind = "literal"
	// KindOneOf matches when the field value is in an allowed set.
	KindOneOf PredicateKind = "one_of"
	// KindCmp matches through one comparison operator.
	KindCmp PredicateKind = "cmp"
)

// CmpOp identifies one comparison operator of a KindCmp predicate.
// Params: constants for eq/ne/gt/lt/contains/regex.
// Returns: operator tag consumed by Predicate.Match.
type CmpOp string

const (
	// OpEq matches equal values.
	OpEq CmpOp = "eq"
	// OpNe matches unequal values.
	OpNe CmpOp = "ne"
	// OpGt matches numeric values strictly above the operand.
	OpGt CmpOp = "gt"
	// OpLt matches numeric values strictly below the operand.
	OpLt CmpOp = "lt"
	// OpContains matches when the operand is a substring of the value.
	OpContains CmpOp = "contains"
	// OpRegex matches through a case-insensitive pattern search.
	OpRegex CmpOp = "regex"
)

// Predicate is one rule condition against a single notification field.
// Params: kind tag plus the operand slot that kind reads.
// Returns: matched against field values during routing.
type Predicate struct {
	Kind    PredicateKind
	Literal any
	Allowed []string
	Op      CmpOp
	Operand any
	Number  float64
	Pattern string

	re *regexp.Regexp
}

// Equals builds a literal predicate.
// Params: expected field value.
// Returns: predicate matching exactly that value.
func Equals(value any) Predicate {
	return Predicate{Kind: KindLiteral, Literal: value}
}

// OneOf builds a set membership predicate.
// Params: allowed field values.
// Returns: predicate matching any listed value.
func OneOf(values ...string) Predicate {
	return Predicate{Kind: KindOneOf, Allowed: values}
}

// Cmp builds a comparison predicate for eq/ne operators.
// Params: operator and comparison operand.
// Returns: predicate applying the operator to the field value.
func Cmp(op CmpOp, operand any) Predicate {
	return Predicate{Kind: KindCmp, Op: op, Operand: operand}
}

// CmpNumber builds a gt/lt comparison predicate.
// Params: operator and numeric threshold.
// Returns: predicate failing closed when the field is absent or non-numeric.
func CmpNumber(op CmpOp, threshold float64) Predicate {
	return Predicate{Kind: KindCmp, Op: op, Number: threshold}
}

// Contains builds a substring predicate.
// Params: substring the field value must contain.
// Returns: predicate matching via substring search.
func Contains(substring string) Predicate {
	return Predicate{Kind: KindCmp, Op: OpContains, Pattern: substring}
}

// Regex builds a compiled pattern predicate.
// Params: regular expression searched case-insensitively.
// Returns: predicate or compilation error.
func Regex(pattern string) (Predicate, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Predicate{}, fmt.Errorf("compile routing pattern %q: %w", pattern, err)
	}
	return Predicate{Kind: KindCmp, Op: OpRegex, Pattern: pattern, re: re}, nil
}

// MustRegex builds a pattern predicate and panics on a bad pattern.
// Params: regular expression known valid at build time.
// Returns: compiled pattern predicate.
func MustRegex(pattern string) Predicate {
	predicate, err := Regex(pattern)
	if err != nil {
		panic(err)
	}
	return predicate
}

// Match evaluates the predicate against one field value.
// Params: field value and presence flag from the notification.
// Returns: true when the condition holds.
func (p Predicate) Match(value any, present bool) bool {
	switch p.Kind {
	case KindLiteral:
		return present && valuesEqual(value, p.Literal)
	case KindOneOf:
		if !present {
			return false
		}
		text := stringify(value)
		for _, allowed := range p.Allowed {
			if text == allowed {
				return true
			}
		}
		return false
	case KindCmp:
		return p.matchCmp(value, present)
	}
	return false
}

// matchCmp applies one comparison operator to a field value.
// Params: field value and presence flag.
// Returns: operator result, closed on absent fields for ordering ops.
func (p Predicate) matchCmp(value any, present bool) bool {
	switch p.Op {
	case OpEq:
		return present && valuesEqual(value, p.Operand)
	case OpNe:
		return !present || !valuesEqual(value, p.Operand)
	case OpGt:
		number, ok := asNumber(value)
		return present && ok && number > p.Number
	case OpLt:
		number, ok := asNumber(value)
		return present && ok && number < p.Number
	case OpContains:
		if !present || value == nil {
			return false
		}
		if list, ok := value.([]string); ok {
			for _, item := range list {
				if strings.Contains(item, p.Pattern) {
					return true
				}
			}
			return false
		}
		return strings.Contains(stringify(value), p.Pattern)
	case OpRegex:
		if !present || value == nil || p.re == nil {
			return false
		}
		return p.re.MatchString(stringify(value))
	}
	return false
}

// valuesEqual compares two field values across scalar types.
// Params: actual field value and expected operand.
// Returns: true when both stringify or evaluate numerically equal.
func valuesEqual(actual, expected any) bool {
	if actualNumber, ok := asNumber(actual); ok {
		if expectedNumber, ok := asNumber(expected); ok {
			return actualNumber == expectedNumber
		}
		return false
	}
	if actualBool, ok := actual.(bool); ok {
		expectedBool, isBool := expected.(bool)
		return isBool && actualBool == expectedBool
	}
	return stringify(actual) == stringify(expected)
}

// asNumber converts supported numeric field types to float64.
// Params: arbitrary field value.
// Returns: numeric value and conversion success.
func asNumber(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	}
	return 0, false
}

// stringify renders one field value for textual comparison.
// Params: arbitrary field value.
// Returns: string form used by one-of, contains and regex matching.
func stringify(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", value)
}
