package repo

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCreateSubsidy_DuplicateHashRejected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	hash := strings.Repeat("ab", 32)

	first, err := CreateSubsidy(ctx, db, hash, []byte("sealed-1"))
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	if _, err := CreateSubsidy(ctx, db, hash, []byte("sealed-2")); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := GetSubsidyByHash(ctx, db, hash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != first.ID || !bytes.Equal(got.Payload, []byte("sealed-1")) {
		t.Fatalf("original application overwritten")
	}
}

func TestGetSubsidyByHash_Missing(t *testing.T) {
	db := newTestDB(t)
	if _, err := GetSubsidyByHash(context.Background(), db, strings.Repeat("00", 32)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
