// Package where builds metadata and document filter trees.
//
//	where.And(where.Eq("topic", "rust"), where.Gte("year", 2020))
//
// The builders are shorthand only. Any models.Where or models.WhereDocument
// literal is accepted wherever a filter is.
package where

import "github.com/papercomputeco/khroma/pkg/khroma/models"

func op(key, operator string, value any) models.Where {
	return models.Where{key: map[string]any{operator: value}}
}

// Eq matches records whose metadata key equals value.
func Eq(key string, value any) models.Where { return op(key, "$eq", value) }

// Ne matches records whose metadata key differs from value.
func Ne(key string, value any) models.Where { return op(key, "$ne", value) }

func Gt(key string, value any) models.Where  { return op(key, "$gt", value) }
func Gte(key string, value any) models.Where { return op(key, "$gte", value) }
func Lt(key string, value any) models.Where  { return op(key, "$lt", value) }
func Lte(key string, value any) models.Where { return op(key, "$lte", value) }

// In matches records whose metadata key is one of values.
func In[T any](key string, values ...T) models.Where {
	return op(key, "$in", list(values))
}

// Nin matches records whose metadata key is none of values.
func Nin[T any](key string, values ...T) models.Where {
	return op(key, "$nin", list(values))
}

// And requires every clause. The server rejects logical operators with
// fewer than two clauses, so empty clauses are dropped, a single one is
// returned unwrapped and none at all yields a nil filter.
func And(clauses ...models.Where) models.Where { return logical("$and", clauses) }

// Or requires at least one clause.
func Or(clauses ...models.Where) models.Where { return logical("$or", clauses) }

// Contains matches documents containing text.
func Contains(text string) models.WhereDocument {
	return models.WhereDocument{"$contains": text}
}

func NotContains(text string) models.WhereDocument {
	return models.WhereDocument{"$not_contains": text}
}

// Regex matches documents against a server-side regular expression.
func Regex(pattern string) models.WhereDocument {
	return models.WhereDocument{"$regex": pattern}
}

func NotRegex(pattern string) models.WhereDocument {
	return models.WhereDocument{"$not_regex": pattern}
}

func DocumentAnd(clauses ...models.WhereDocument) models.WhereDocument {
	return logical("$and", clauses)
}

func DocumentOr(clauses ...models.WhereDocument) models.WhereDocument {
	return logical("$or", clauses)
}

// logical drops empty clauses. Nothing left yields a nil filter, which
// requests omit.
func logical[M ~map[string]any](operator string, clauses []M) M {
	items := make([]any, 0, len(clauses))
	var last M
	for _, c := range clauses {
		if len(c) == 0 {
			continue
		}
		items = append(items, map[string]any(c))
		last = c
	}
	switch len(items) {
	case 0:
		return nil
	case 1:
		return last
	}
	return M{operator: items}
}

func list[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
