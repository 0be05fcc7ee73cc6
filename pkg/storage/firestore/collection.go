package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
)

type ToFirestoreFunc[T any] func(*T) map[string]interface{}
type FromFirestoreFunc[T any] func(map[string]interface{}) *T

type Collection[T any] struct {
	Ref           *firestore.CollectionRef
	ToFirestore   ToFirestoreFunc[T]
	FromFirestore FromFirestoreFunc[T]
}

func (c *Collection[T]) Doc(id string) *DocumentRef[T] {
	return &DocumentRef[T]{
		Ref:           c.Ref.Doc(id),
		ToFirestore:   c.ToFirestore,
		FromFirestore: c.FromFirestore,
	}
}

type DocumentRef[T any] struct {
	Ref           *firestore.DocumentRef
	ToFirestore   ToFirestoreFunc[T]
	FromFirestore FromFirestoreFunc[T]
}

func (d *DocumentRef[T]) ID() string {
	return d.Ref.ID
}

func (d *DocumentRef[T]) Get(ctx context.Context) (*T, error) {
	snap, err := d.Ref.Get(ctx)
	if err != nil {
		return nil, err
	}
	return d.FromFirestore(snap.Data()), nil
}

// Set merges the converted document.
func (d *DocumentRef[T]) Set(ctx context.Context, data *T) error {
	_, err := d.Ref.Set(ctx, d.ToFirestore(data), firestore.MergeAll)
	return err
}

// Replace overwrites the whole document, dropping fields the converter omits.
func (d *DocumentRef[T]) Replace(ctx context.Context, data *T) error {
	_, err := d.Ref.Set(ctx, d.ToFirestore(data))
	return err
}

// Update merges a partial map. Keys are snake_case Firestore field names and
// bypass the converter.
func (d *DocumentRef[T]) Update(ctx context.Context, updates map[string]interface{}) error {
	_, err := d.Ref.Set(ctx, updates, firestore.MergeAll)
	return err
}
