package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/593496637/onchain-data-system/internal/model"
	"github.com/593496637/onchain-data-system/internal/storage"
)

func dataRecord(id string, sender, message string, occurredAt, blockNumber, logIndex uint64) model.DataRecord {
	return model.DataRecord{
		ID:          id,
		Sender:      sender,
		Message:     message,
		OccurredAt:  occurredAt,
		BlockNumber: blockNumber,
		TxHash:      "0x" + id,
		LogIndex:    logIndex,
	}
}

func TestUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	store := New()

	record := dataRecord("t1-0", "0xaaa", "hello", 1000, 10, 0)
	if err := store.Upsert(ctx, record); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Upsert(ctx, record); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	entities, err := store.Scan(ctx, model.TypeDataRecord, storage.Filter{}, storage.ScanOptions{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity after replay, got %d", len(entities))
	}

	got, err := store.Get(ctx, model.TypeDataRecord, "t1-0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MessageText() != "hello" {
		t.Fatalf("fields changed after replay: %q", got.MessageText())
	}
}

func TestUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	store := New()

	if err := store.Upsert(ctx, dataRecord("t1-0", "0xaaa", "first", 1000, 10, 0)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Upsert(ctx, dataRecord("t1-0", "0xaaa", "second", 1000, 10, 0)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.Get(ctx, model.TypeDataRecord, "t1-0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MessageText() != "second" {
		t.Fatalf("expected overwrite, got %q", got.MessageText())
	}
}

func TestGetNotFound(t *testing.T) {
	store := New()
	if _, err := store.Get(context.Background(), model.TypeDataRecord, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScanOrderDescDefault(t *testing.T) {
	ctx := context.Background()
	store := New()

	for i, ts := range []uint64{1000, 3000, 2000} {
		record := dataRecord(fmt.Sprintf("t%d-0", i), "0xaaa", "m", ts, uint64(10+i), 0)
		if err := store.Upsert(ctx, record); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	entities, err := store.Scan(ctx, model.TypeDataRecord, storage.Filter{}, storage.ScanOptions{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entities) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(entities))
	}
	for i := 1; i < len(entities); i++ {
		if entities[i-1].OccurredAtUnix() < entities[i].OccurredAtUnix() {
			t.Fatalf("descending order violated at %d", i)
		}
	}

	asc, err := store.Scan(ctx, model.TypeDataRecord, storage.Filter{}, storage.ScanOptions{Direction: storage.Asc})
	if err != nil {
		t.Fatalf("scan asc: %v", err)
	}
	for i := 1; i < len(asc); i++ {
		if asc[i-1].OccurredAtUnix() > asc[i].OccurredAtUnix() {
			t.Fatalf("ascending order violated at %d", i)
		}
	}
}

func TestScanTieBreakDeterministic(t *testing.T) {
	ctx := context.Background()
	store := New()

	// Same timestamp; order must fall back to (block, log index).
	if err := store.Upsert(ctx, dataRecord("t1-1", "0xaaa", "b", 1000, 10, 1)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Upsert(ctx, dataRecord("t1-0", "0xaaa", "a", 1000, 10, 0)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	first, err := store.Scan(ctx, model.TypeDataRecord, storage.Filter{}, storage.ScanOptions{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	second, err := store.Scan(ctx, model.TypeDataRecord, storage.Filter{}, storage.ScanOptions{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 entities")
	}
	for i := range first {
		if first[i].EntityID() != second[i].EntityID() {
			t.Fatalf("scan not deterministic at %d: %s != %s", i, first[i].EntityID(), second[i].EntityID())
		}
	}
	if first[0].EntityID() != "t1-0" {
		t.Fatalf("tiebreak mismatch: %s", first[0].EntityID())
	}
}

func TestScanFilterConjunction(t *testing.T) {
	ctx := context.Background()
	store := New()

	records := []model.TransferRecord{
		{ID: "a", Sender: "0xAAA", Recipient: "0xBBB", Amount: "1000000000000000000", Message: "payment for services", OccurredAt: 1000, BlockNumber: 1, TxHash: "0xa", LogIndex: 0},
		{ID: "b", Sender: "0xAAA", Recipient: "0xCCC", Amount: "5", Message: "coffee", OccurredAt: 2000, BlockNumber: 2, TxHash: "0xb", LogIndex: 0},
		{ID: "c", Sender: "0xDDD", Recipient: "0xBBB", Amount: "7", Message: "payment again", OccurredAt: 3000, BlockNumber: 3, TxHash: "0xc", LogIndex: 0},
	}
	for _, record := range records {
		if err := store.Upsert(ctx, record); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	after := uint64(500)
	before := uint64(2500)
	filter := storage.Filter{
		SenderEquals:    "0xaaa",
		RecipientEquals: "0xbbb",
		OccurredAfter:   &after,
		OccurredBefore:  &before,
		MessageContains: "Payment",
	}
	entities, err := store.Scan(ctx, model.TypeTransferRecord, filter, storage.ScanOptions{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entities) != 1 || entities[0].EntityID() != "a" {
		t.Fatalf("conjunction mismatch: %+v", entities)
	}

	// recipient filter excluding everything
	none, err := store.Scan(ctx, model.TypeTransferRecord, storage.Filter{SenderEquals: "0xAAA", RecipientEquals: "0x999"}, storage.ScanOptions{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty result, got %d", len(none))
	}
}

func TestScanMessageContainsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	store := New()

	if err := store.Upsert(ctx, dataRecord("t1-0", "0xaaa", "payment for services", 1000, 1, 0)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	entities, err := store.Scan(ctx, model.TypeDataRecord, storage.Filter{MessageContains: "Payment"}, storage.ScanOptions{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("expected case-insensitive match, got %d entities", len(entities))
	}
}

func TestScanPaginationStable(t *testing.T) {
	ctx := context.Background()
	store := New()

	for i := 0; i < 7; i++ {
		record := dataRecord(fmt.Sprintf("t%d-0", i), "0xaaa", "m", uint64(1000+i), uint64(i), 0)
		if err := store.Upsert(ctx, record); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	all, err := store.Scan(ctx, model.TypeDataRecord, storage.Filter{}, storage.ScanOptions{Limit: 5})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	pageOne, err := store.Scan(ctx, model.TypeDataRecord, storage.Filter{}, storage.ScanOptions{Limit: 3})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	pageTwo, err := store.Scan(ctx, model.TypeDataRecord, storage.Filter{}, storage.ScanOptions{Limit: 2, Offset: 3})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	joined := append(append([]model.Entity{}, pageOne...), pageTwo...)
	if len(joined) != len(all) {
		t.Fatalf("page concatenation length mismatch: %d != %d", len(joined), len(all))
	}
	for i := range all {
		if all[i].EntityID() != joined[i].EntityID() {
			t.Fatalf("page concatenation mismatch at %d", i)
		}
	}

	empty, err := store.Scan(ctx, model.TypeDataRecord, storage.Filter{}, storage.ScanOptions{Offset: 100})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("offset past end should be empty, got %d", len(empty))
	}

	// A caller-supplied negative offset must behave like zero, not panic.
	negative, err := store.Scan(ctx, model.TypeDataRecord, storage.Filter{}, storage.ScanOptions{Limit: 3, Offset: -2})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(negative) != 3 || negative[0].EntityID() != pageOne[0].EntityID() {
		t.Fatalf("negative offset should behave like zero, got %+v", negative)
	}
}

func TestScanInvalidRecipientFilter(t *testing.T) {
	store := New()
	_, err := store.Scan(context.Background(), model.TypeDataRecord, storage.Filter{RecipientEquals: "0xbbb"}, storage.ScanOptions{})
	if !storage.IsInvalidQuery(err) {
		t.Fatalf("expected InvalidQueryError, got %v", err)
	}
}

func TestRetract(t *testing.T) {
	ctx := context.Background()
	store := New()

	record := dataRecord("t1-0", "0xaaa", "hello", 1000, 10, 0)
	if err := store.Upsert(ctx, record); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Retract(ctx, model.TypeDataRecord, "t1-0"); err != nil {
		t.Fatalf("retract: %v", err)
	}

	if _, err := store.Get(ctx, model.TypeDataRecord, "t1-0"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after retract, got %v", err)
	}

	entities, err := store.Scan(ctx, model.TypeDataRecord, storage.Filter{}, storage.ScanOptions{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entities) != 0 {
		t.Fatalf("scan should exclude retracted entity, got %d", len(entities))
	}

	// retracting again is a no-op
	if err := store.Retract(ctx, model.TypeDataRecord, "t1-0"); err != nil {
		t.Fatalf("second retract: %v", err)
	}
}
