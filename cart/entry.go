package cart

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// DefaultStorageKey is the storage key the cart lives under unless overridden.
const DefaultStorageKey = "@D8:products"

// Product is what a caller hands to AddToCart.
type Product struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}

// Entry is one product line in the cart.
type Entry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

func newEntry(p Product) Entry {
	return Entry{
		ID:       p.ID,
		Title:    p.Title,
		ImageURL: p.ImageURL,
		Price:    p.Price,
		Quantity: 1,
	}
}

// Encode serializes entries into the persisted JSON array form.
// A nil slice encodes as an empty array.
func Encode(entries []Entry) (string, error) {
	if entries == nil {
		entries = []Entry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", errors.Wrap(err, "encode cart")
	}
	return string(b), nil
}

// Decode parses a persisted blob. Entries with a non-positive quantity and
// repeated ids are dropped so a damaged blob cannot break the cart invariants.
func Decode(blob string) ([]Entry, error) {
	var raw []Entry
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}

	entries := make([]Entry, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, e := range raw {
		if e.Quantity < 1 {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		entries = append(entries, e)
	}
	return entries, nil
}
