package models

import "encoding/json"

const (
	DefaultBucketID    = "_leads"
	DefaultBucketTitle = "Leads"
)

// Bucket is one kanban column. The JSON shape ("item") is what the board UI persists.
type Bucket struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Items []Contact `json:"item"`

	Extra map[string]json.RawMessage `json:"-"`
}

type bucketFields Bucket

// UnmarshalJSON accepts any JSON object. Null or non-object entries of "item"
// are skipped instead of failing the whole bucket.
func (b *Bucket) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*b = Bucket{}
	for key, raw := range fields {
		var ok bool
		switch key {
		case "id":
			b.ID, ok = looseString(raw)
		case "title":
			b.Title, ok = looseString(raw)
		case "item":
			b.Items, ok = decodeItems(raw)
		}
		if ok {
			continue
		}
		if b.Extra == nil {
			b.Extra = make(map[string]json.RawMessage)
		}
		b.Extra[key] = raw
	}
	return nil
}

func (b Bucket) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(bucketFields(b))
	if err != nil || len(b.Extra) == 0 {
		return body, err
	}
	return withExtra(body, b.Extra)
}

func decodeItems(raw json.RawMessage) ([]Contact, bool) {
	if isNull(raw) {
		return nil, true
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	items := make([]Contact, 0, len(entries))
	for _, entry := range entries {
		if isNull(entry) {
			continue
		}
		var c Contact
		if err := json.Unmarshal(entry, &c); err != nil {
			continue
		}
		items = append(items, c)
	}
	return items, true
}

// Board is the ordered list of buckets stored under the board path of the mirror.
type Board []Bucket

// NewBoard returns a board holding only the default bucket.
func NewBoard() Board {
	return Board{{ID: DefaultBucketID, Title: DefaultBucketTitle, Items: []Contact{}}}
}

// DefaultBucket returns the index of the bucket new leads are appended to:
// the "_leads" bucket when present, otherwise the first one.
func (b Board) DefaultBucket() int {
	for i, bucket := range b {
		if bucket.ID == DefaultBucketID {
			return i
		}
	}
	return 0
}

// Keys returns the identity keys placed anywhere on the board.
func (b Board) Keys() map[string]struct{} {
	keys := make(map[string]struct{})
	for _, bucket := range b {
		for _, item := range bucket.Items {
			if item.ID != "" {
				keys[item.ID] = struct{}{}
			}
		}
	}
	return keys
}

// Find locates the first entry with the given identity key.
func (b Board) Find(id string) (bucket, index int, ok bool) {
	for i, col := range b {
		for j, item := range col.Items {
			if item.ID == id {
				return i, j, true
			}
		}
	}
	return -1, -1, false
}
