package gallery

import "context"

// Repository persists the whole collection as one ordered list.
// Load returns an empty list and ErrCorrupt when stored data cannot be decoded.
type Repository interface {
	Load(ctx context.Context) ([]*Item, error)
	Save(ctx context.Context, items []*Item) error
}
