package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tallyhq/tally/pkg/types"
)

// EntityKey is the cache key holding the document list for an entity type.
func EntityKey(entityType types.EntityType) string {
	return "entities/" + string(entityType)
}

type docID struct {
	ID string `json:"id"`
}

// Documents returns the cached document list for an entity type along with
// its staleness. A type that was never cached returns an empty, fresh list.
func (c *Cache) Documents(entityType types.EntityType) ([][]byte, bool, error) {
	res, err := c.Get(EntityKey(entityType))
	if errors.Is(err, types.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(res.Payload, &raw); err != nil {
		return nil, false, fmt.Errorf("decode %s list: %w", entityType, err)
	}
	docs := make([][]byte, len(raw))
	for i, d := range raw {
		docs[i] = []byte(d)
	}
	return docs, res.IsStale, nil
}

// Document returns the cached document with the given id, or ErrNotFound.
func (c *Cache) Document(entityType types.EntityType, id string) ([]byte, error) {
	docs, _, err := c.Documents(entityType)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		var d docID
		if err := json.Unmarshal(doc, &d); err != nil {
			continue
		}
		if d.ID == id {
			return doc, nil
		}
	}
	return nil, fmt.Errorf("%s document %s: %w", entityType, id, types.ErrNotFound)
}

// UpsertDocument replaces the document with the same id in the cached list,
// or appends it. The whole list is rewritten; there are no partial merges.
func (c *Cache) UpsertDocument(entityType types.EntityType, doc []byte) error {
	var d docID
	if err := json.Unmarshal(doc, &d); err != nil {
		return fmt.Errorf("decode document id: %w", err)
	}
	if d.ID == "" {
		return fmt.Errorf("document missing id")
	}

	docs, _, err := c.Documents(entityType)
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range docs {
		var e docID
		if err := json.Unmarshal(existing, &e); err != nil {
			continue
		}
		if e.ID == d.ID {
			docs[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		docs = append(docs, doc)
	}

	return c.putDocuments(entityType, docs)
}

// RemoveDocument deletes the document with the given id from the cached list.
// Removing an absent document is a no-op.
func (c *Cache) RemoveDocument(entityType types.EntityType, id string) error {
	docs, _, err := c.Documents(entityType)
	if err != nil {
		return err
	}

	kept := docs[:0]
	for _, doc := range docs {
		var d docID
		if err := json.Unmarshal(doc, &d); err == nil && d.ID == id {
			continue
		}
		kept = append(kept, doc)
	}
	return c.putDocuments(entityType, kept)
}

// HasDocumentID reports whether any cached list contains a document carrying
// the given identifier. Used to check temporary-id uniqueness before minting.
func (c *Cache) HasDocumentID(id string) (bool, error) {
	entries, err := c.store.ListEntries()
	if err != nil {
		return false, err
	}
	needle := quote(id)
	for _, e := range entries {
		if bytes.Contains(e.Payload, needle) {
			return true, nil
		}
	}
	return false, nil
}

// RewriteID replaces every cached reference to a temporary identifier with
// the canonical one, across all entries. References are quoted JSON string
// values (document ids and foreign keys like account_id), so a quoted byte
// replacement covers them all.
func (c *Cache) RewriteID(temp types.TemporaryID, canonical types.CanonicalID) error {
	entries, err := c.store.ListEntries()
	if err != nil {
		return err
	}

	from := quote(temp.String())
	to := quote(canonical.String())
	for _, entry := range entries {
		if !bytes.Contains(entry.Payload, from) {
			continue
		}
		rewritten := bytes.ReplaceAll(entry.Payload, from, to)
		// Preserve the original capture time; rewriting ids is not a data
		// refresh.
		entry.Payload = rewritten
		if err := c.store.PutEntry(entry); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceDocuments overwrites the cached list for an entity type wholesale,
// e.g. from a remote refresh. The capture timestamp resets.
func (c *Cache) ReplaceDocuments(entityType types.EntityType, docs [][]byte) error {
	return c.putDocuments(entityType, docs)
}

func (c *Cache) putDocuments(entityType types.EntityType, docs [][]byte) error {
	raw := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		raw[i] = json.RawMessage(d)
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode %s list: %w", entityType, err)
	}
	return c.Put(EntityKey(entityType), payload)
}

func quote(s string) []byte {
	return []byte(`"` + s + `"`)
}

// WithDocumentID returns the JSON document with its id field set, used when a
// store-assigned or freshly minted identifier needs to land in the payload.
func WithDocumentID(payload []byte, id string) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	doc["id"] = id
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return out, nil
}
