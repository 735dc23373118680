package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/tinywideclouds/go-fcm-notification/pkg/dispatch"
)

// DefaultReceiptsCollection is used when no collection name is configured.
const DefaultReceiptsCollection = "fcm-receipts"

// ReceiptStore implements dispatch.ReceiptStore using Google Cloud Firestore.
type ReceiptStore struct {
	client     *firestore.Client
	collection string
}

func NewReceiptStore(client *firestore.Client, collection string) *ReceiptStore {
	if collection == "" {
		collection = DefaultReceiptsCollection
	}
	return &ReceiptStore{client: client, collection: collection}
}

// Record writes the receipt under a fresh random document id.
func (s *ReceiptStore) Record(ctx context.Context, receipt dispatch.Receipt) (string, error) {
	id := uuid.NewString()
	if _, err := s.client.Collection(s.collection).Doc(id).Set(ctx, receipt); err != nil {
		return "", fmt.Errorf("failed to write receipt %s: %w", id, err)
	}
	return id, nil
}

// Recent returns up to n receipts ordered by creation time, newest first.
func (s *ReceiptStore) Recent(ctx context.Context, n int) ([]dispatch.Receipt, error) {
	if n <= 0 {
		return []dispatch.Receipt{}, nil
	}

	iter := s.client.Collection(s.collection).
		OrderBy("createdAt", firestore.Desc).
		Limit(n).
		Documents(ctx)
	defer iter.Stop()

	receipts := make([]dispatch.Receipt, 0, n)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var r dispatch.Receipt
		if err := doc.DataTo(&r); err != nil {
			// Corrupt rows are skipped.
			continue
		}
		r.ID = doc.Ref.ID
		receipts = append(receipts, r)
	}

	return receipts, nil
}
