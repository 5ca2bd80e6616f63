package cache

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/tallyhq/tally/pkg/types"
)

func TestUpsertDocumentAppendsAndReplaces(t *testing.T) {
	c := newTestCache(t, time.Minute)

	if err := c.UpsertDocument(types.EntityAccount, []byte(`{"id":"a1","name":"Checking"}`)); err != nil {
		t.Fatalf("UpsertDocument(a1) error = %v", err)
	}
	if err := c.UpsertDocument(types.EntityAccount, []byte(`{"id":"a2","name":"Savings"}`)); err != nil {
		t.Fatalf("UpsertDocument(a2) error = %v", err)
	}
	if err := c.UpsertDocument(types.EntityAccount, []byte(`{"id":"a1","name":"Checking+"}`)); err != nil {
		t.Fatalf("UpsertDocument(a1 again) error = %v", err)
	}

	docs, _, err := c.Documents(types.EntityAccount)
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Documents() returned %d docs, want 2", len(docs))
	}

	doc, err := c.Document(types.EntityAccount, "a1")
	if err != nil {
		t.Fatalf("Document(a1) error = %v", err)
	}
	var acc types.Account
	if err := json.Unmarshal(doc, &acc); err != nil {
		t.Fatalf("decode a1: %v", err)
	}
	if acc.Name != "Checking+" {
		t.Errorf("a1 name = %s, want Checking+", acc.Name)
	}
}

func TestRemoveDocument(t *testing.T) {
	c := newTestCache(t, time.Minute)

	c.UpsertDocument(types.EntityRecord, []byte(`{"id":"r1"}`))
	c.UpsertDocument(types.EntityRecord, []byte(`{"id":"r2"}`))

	if err := c.RemoveDocument(types.EntityRecord, "r1"); err != nil {
		t.Fatalf("RemoveDocument() error = %v", err)
	}
	if _, err := c.Document(types.EntityRecord, "r1"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Document(removed) error = %v, want ErrNotFound", err)
	}
	if err := c.RemoveDocument(types.EntityRecord, "r1"); err != nil {
		t.Errorf("RemoveDocument(absent) error = %v, want nil", err)
	}
}

func TestDocumentsNeverCachedIsEmptyList(t *testing.T) {
	c := newTestCache(t, time.Minute)

	docs, stale, err := c.Documents(types.EntityMember)
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	if len(docs) != 0 || stale {
		t.Errorf("Documents(uncached) = %d docs, stale=%v; want empty fresh list", len(docs), stale)
	}
}

func TestRewriteIDCoversAllReferences(t *testing.T) {
	c := newTestCache(t, time.Minute)

	temp := types.TemporaryID("tmp_abc")
	c.UpsertDocument(types.EntityTransaction, []byte(`{"id":"tmp_abc","account_id":"a1","amount":30}`))
	c.UpsertDocument(types.EntityRecord, []byte(`{"id":"r1","transaction_id":"tmp_abc"}`))

	if err := c.RewriteID(temp, types.CanonicalID("txn_900")); err != nil {
		t.Fatalf("RewriteID() error = %v", err)
	}

	if has, _ := c.HasDocumentID("tmp_abc"); has {
		t.Error("temporary id still referenced after rewrite")
	}
	if _, err := c.Document(types.EntityTransaction, "txn_900"); err != nil {
		t.Errorf("Document(txn_900) error = %v, want rewritten doc", err)
	}
	doc, err := c.Document(types.EntityRecord, "r1")
	if err != nil {
		t.Fatalf("Document(r1) error = %v", err)
	}
	var ref struct {
		TransactionID string `json:"transaction_id"`
	}
	json.Unmarshal(doc, &ref)
	if ref.TransactionID != "txn_900" {
		t.Errorf("foreign key = %s, want txn_900", ref.TransactionID)
	}
}
