package khromatest

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/papercomputeco/khroma/pkg/khroma/models"
)

func badFilter(format string, args ...any) error {
	return apiErr(http.StatusBadRequest, "InvalidArgumentError", fmt.Sprintf(format, args...))
}

// matchWhere evaluates a metadata filter. Keys of one object are ANDed. A
// record without the key never matches a comparison on it.
func matchWhere(w map[string]any, md models.Metadata) (bool, error) {
	for key, clause := range w {
		var (
			ok  bool
			err error
		)
		switch key {
		case "$and", "$or":
			ok, err = matchLogical(key, clause, func(sub map[string]any) (bool, error) {
				return matchWhere(sub, md)
			})
		default:
			ok, err = matchField(key, clause, md)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchLogical(operator string, clause any, eval func(map[string]any) (bool, error)) (bool, error) {
	items, ok := clause.([]any)
	if !ok || len(items) == 0 {
		return false, badFilter("%s expects a non-empty list", operator)
	}
	for _, item := range items {
		sub, ok := item.(map[string]any)
		if !ok {
			return false, badFilter("%s expects a list of objects", operator)
		}
		matched, err := eval(sub)
		if err != nil {
			return false, err
		}
		if operator == "$or" && matched {
			return true, nil
		}
		if operator == "$and" && !matched {
			return false, nil
		}
	}
	return operator == "$and", nil
}

func matchField(key string, clause any, md models.Metadata) (bool, error) {
	ops, isOps := clause.(map[string]any)
	if !isOps {
		ops = map[string]any{"$eq": clause}
	}
	if len(ops) != 1 {
		return false, badFilter("expected exactly one operator for %q", key)
	}

	value, present := md[key]
	for operator, operand := range ops {
		switch operator {
		case "$eq":
			return present && equal(value, operand), nil
		case "$ne":
			return present && !equal(value, operand), nil
		case "$gt", "$gte", "$lt", "$lte":
			bound, ok := operand.(float64)
			if !ok {
				return false, badFilter("%s on %q expects a number", operator, key)
			}
			n, ok := value.(float64)
			if !present || !ok {
				return false, nil
			}
			return compare(operator, n, bound), nil
		case "$in", "$nin":
			list, ok := operand.([]any)
			if !ok {
				return false, badFilter("%s on %q expects a list", operator, key)
			}
			if !present {
				return false, nil
			}
			found := false
			for _, candidate := range list {
				if equal(value, candidate) {
					found = true
					break
				}
			}
			return found == (operator == "$in"), nil
		default:
			return false, badFilter("unknown operator %s", operator)
		}
	}
	return false, nil
}

func equal(a, b any) bool {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	default:
		return false
	}
}

func compare(operator string, n, bound float64) bool {
	switch operator {
	case "$gt":
		return n > bound
	case "$gte":
		return n >= bound
	case "$lt":
		return n < bound
	default:
		return n <= bound
	}
}

// matchDocument evaluates a full-text filter. A missing document is treated
// as empty text.
func matchDocument(w map[string]any, doc *string) (bool, error) {
	text := ""
	if doc != nil {
		text = *doc
	}

	for operator, operand := range w {
		var (
			ok  bool
			err error
		)
		switch operator {
		case "$and", "$or":
			ok, err = matchLogical(operator, operand, func(sub map[string]any) (bool, error) {
				return matchDocument(sub, doc)
			})
		case "$contains", "$not_contains":
			needle, isString := operand.(string)
			if !isString {
				return false, badFilter("%s expects a string", operator)
			}
			ok = strings.Contains(text, needle) == (operator == "$contains")
		case "$regex", "$not_regex":
			pattern, isString := operand.(string)
			if !isString {
				return false, badFilter("%s expects a string", operator)
			}
			re, compileErr := regexp.Compile(pattern)
			if compileErr != nil {
				return false, badFilter("invalid regex %q: %v", pattern, compileErr)
			}
			ok = re.MatchString(text) == (operator == "$regex")
		default:
			return false, badFilter("unknown document operator %s", operator)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
