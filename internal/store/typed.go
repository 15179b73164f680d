package store

import "context"

// Get decodes a single record into T.
func Get[T any](ctx context.Context, g Gateway, entity Entity, id string) (T, error) {
	var out T
	err := g.GetByID(ctx, entity, id, &out)
	return out, err
}

// Find runs a query and decodes the result set into a slice of T.
func Find[T any](ctx context.Context, g Gateway, entity Entity, q Query) ([]T, error) {
	var out []T
	if err := g.Query(ctx, entity, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}
