package services

import (
	"context"
	"testing"

	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
	"github.com/Jos-zenith/uzhavan-sub000/internal/repo"
)

func TestSubsidyUpsert_FirstWriteStoresAndQueues(t *testing.T) {
	h := newHarness(t, false, defaultTestPolicy())
	ctx := context.Background()

	res, err := h.subsidies.Upsert(ctx, "F-100", 12, 2026, map[string]any{"crop": "paddy"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if res.IsDuplicate {
		t.Fatalf("first write reported as duplicate")
	}
	if len(res.PolicyHash) != 64 {
		t.Fatalf("policy hash = %q", res.PolicyHash)
	}

	stored, err := repo.GetSubsidyByHash(ctx, h.db, res.PolicyHash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	fields := map[string]any{}
	if err := h.subsidies.Cipher.DecryptBytes(stored.Payload, &fields); err != nil {
		t.Fatalf("decrypt stored payload: %v", err)
	}
	if fields["crop"] != "paddy" {
		t.Fatalf("payload round trip: %v", fields)
	}

	var entries []domain.SyncQueueEntry
	if err := h.db.Find(&entries).Error; err != nil {
		t.Fatalf("load entries: %v", err)
	}
	if len(entries) != 1 || entries[0].OperationType != domain.OpSubsidySubmit {
		t.Fatalf("expected 1 submit entry, got %+v", entries)
	}
}

func TestSubsidyUpsert_SameKeyIsDuplicate(t *testing.T) {
	h := newHarness(t, false, defaultTestPolicy())
	ctx := context.Background()

	first, err := h.subsidies.Upsert(ctx, "F-100", 12, 2026, map[string]any{"crop": "paddy"})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second, err := h.subsidies.Upsert(ctx, "F-100", 12, 2026, map[string]any{"crop": "millet"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if !second.IsDuplicate {
		t.Fatalf("duplicate not detected")
	}
	if second.PolicyHash != first.PolicyHash {
		t.Fatalf("hash changed across identical keys")
	}
	if second.DuplicateOfUpdatedAt == nil {
		t.Fatalf("duplicate result missing original timestamp")
	}

	// The original application is untouched.
	stored, err := repo.GetSubsidyByHash(ctx, h.db, first.PolicyHash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	fields := map[string]any{}
	if err := h.subsidies.Cipher.DecryptBytes(stored.Payload, &fields); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if fields["crop"] != "paddy" {
		t.Fatalf("original overwritten by duplicate: %v", fields)
	}

	// One submit entry, plus a duplicate event in the log.
	var submits int64
	if err := h.db.Model(&domain.SyncQueueEntry{}).Where("operation_type = ?", domain.OpSubsidySubmit).Count(&submits).Error; err != nil {
		t.Fatalf("count submits: %v", err)
	}
	if submits != 1 {
		t.Fatalf("duplicate produced a second submit entry: %d", submits)
	}

	var dupEvents int64
	if err := h.db.Model(&domain.LocalEvent{}).Where("operation_type = ?", domain.OpSubsidyDuplicate).Count(&dupEvents).Error; err != nil {
		t.Fatalf("count duplicate events: %v", err)
	}
	if dupEvents != 1 {
		t.Fatalf("expected 1 duplicate event, got %d", dupEvents)
	}
}

func TestSubsidyUpsert_DifferentYearIsNotDuplicate(t *testing.T) {
	h := newHarness(t, false, defaultTestPolicy())
	ctx := context.Background()

	a, err := h.subsidies.Upsert(ctx, "F-100", 12, 2026, map[string]any{"crop": "paddy"})
	if err != nil {
		t.Fatalf("upsert 2026: %v", err)
	}
	b, err := h.subsidies.Upsert(ctx, "F-100", 12, 2027, map[string]any{"crop": "paddy"})
	if err != nil {
		t.Fatalf("upsert 2027: %v", err)
	}
	if b.IsDuplicate {
		t.Fatalf("different year wrongly deduplicated")
	}
	if a.PolicyHash == b.PolicyHash {
		t.Fatalf("hash collision across years")
	}
}
