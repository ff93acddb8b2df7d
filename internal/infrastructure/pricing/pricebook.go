// Package pricing holds the unit-price table used to cost components.  The
// table is loaded from YAML, can be replaced atomically while lookups run,
// and resolves a category label through a fixed chain of fallbacks.
package pricing

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/KeyQTO/internal/domain/component"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// Strategy names the fallback step that resolved a label.
type Strategy string

const (
	StrategyExact     Strategy = "exact"
	StrategyPrefix    Strategy = "prefix"
	StrategySubstring Strategy = "substring"
	StrategyKeyword   Strategy = "keyword"
)

// Keyword is a canonical price-table key and the spellings that map to it.
type Keyword struct {
	Key     string
	Aliases []string
}

// BaseKeywords are tried in order when no table key matches the label.  A
// label containing the key or one of its aliases is priced by the row
// stored under the key.
var BaseKeywords = []Keyword{
	{Key: "column", Aliases: []string{"柱", "pillar"}},
	{Key: "beam", Aliases: []string{"梁", "girder"}},
	{Key: "slab", Aliases: []string{"板"}},
	{Key: "wall", Aliases: []string{"墙"}},
	{Key: "foundation", Aliases: []string{"基础", "footing"}},
	{Key: "door", Aliases: []string{"门"}},
	{Key: "window", Aliases: []string{"窗"}},
	{Key: "rebar", Aliases: []string{"钢筋", "reinforcement"}},
	{Key: "brick", Aliases: []string{"砖"}},
	{Key: "block", Aliases: []string{"砌块"}},
}

// BaseKeyword returns the first base keyword label mentions.
func BaseKeyword(label string) (string, bool) {
	q := normalise(label)
	for _, kw := range BaseKeywords {
		if strings.Contains(q, kw.Key) {
			return kw.Key, true
		}
		for _, a := range kw.Aliases {
			if strings.Contains(q, a) {
				return kw.Key, true
			}
		}
	}
	return "", false
}

// Match describes how a label was resolved.
type Match struct {
	Key      string
	Strategy Strategy
	Item     component.PriceItem
}

// File is the on-disk layout of a price table.
type File struct {
	Currency string                         `yaml:"currency"`
	Items    map[string]component.PriceItem `yaml:"items"`
}

// PriceBook is a concurrency-safe price table.
type PriceBook struct {
	mu       sync.RWMutex
	items    map[string]component.PriceItem // keyed by normalised label
	keys     []string                       // normalised keys, longest first
	currency string
	version  int64
	loadedAt time.Time
}

// NewPriceBook returns a book holding items.
func NewPriceBook(items map[string]component.PriceItem) *PriceBook {
	b := &PriceBook{}
	b.Replace(items)
	return b
}

// Parse decodes a YAML price table.  The table must hold at least one item,
// keys must be non-empty, units set and prices non-negative.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePriceTableInvalid, "failed to parse price table")
	}
	if len(f.Items) == 0 {
		return nil, errors.New(errors.ErrCodePriceTableInvalid, "price table has no items")
	}
	for label, item := range f.Items {
		if normalise(label) == "" {
			return nil, errors.New(errors.ErrCodePriceTableInvalid, "price table has an empty label")
		}
		if strings.TrimSpace(item.Unit) == "" {
			return nil, errors.Newf(errors.ErrCodePriceTableInvalid, "price item %q has no unit", label)
		}
		if item.UnitPrice < 0 {
			return nil, errors.Newf(errors.ErrCodePriceTableInvalid, "price item %q has a negative unit price", label)
		}
	}
	return &f, nil
}

// LoadFile reads and parses the table at path and returns a new book.
func LoadFile(path string) (*PriceBook, error) {
	b := &PriceBook{}
	if _, err := b.Reload(path); err != nil {
		return nil, err
	}
	return b, nil
}

// Reload replaces the table with the contents of path.  On failure the
// current table is kept.  It returns the number of items loaded.
func (b *PriceBook) Reload(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodePriceTableLoad, "failed to read price table").WithDetail(path)
	}
	f, err := Parse(data)
	if err != nil {
		return 0, err
	}
	b.replace(f.Items, f.Currency)
	return len(f.Items), nil
}

// Replace swaps in a new table.
func (b *PriceBook) Replace(items map[string]component.PriceItem) {
	b.replace(items, "")
}

func (b *PriceBook) replace(items map[string]component.PriceItem, currency string) {
	next := make(map[string]component.PriceItem, len(items))
	for label, item := range items {
		if key := normalise(label); key != "" {
			next[key] = item
		}
	}
	keys := make([]string, 0, len(next))
	for k := range next {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	b.mu.Lock()
	b.items = next
	b.keys = keys
	b.currency = currency
	b.version++
	b.loadedAt = time.Now()
	b.mu.Unlock()
}

// Lookup resolves label to a copy of its price item.
func (b *PriceBook) Lookup(_ context.Context, label string) (*component.PriceItem, bool) {
	m, ok := b.Match(label)
	if !ok {
		return nil, false
	}
	item := m.Item
	return &item, true
}

// Match resolves label: exact key, then the longest key the label starts
// with, then the longest key contained in the label or containing it, then
// the row stored under the first base keyword the label mentions.
func (b *PriceBook) Match(label string) (Match, bool) {
	q := normalise(label)
	if q == "" {
		return Match{}, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if item, ok := b.items[q]; ok {
		return Match{Key: q, Strategy: StrategyExact, Item: item}, true
	}
	for _, k := range b.keys {
		if strings.HasPrefix(q, k) {
			return Match{Key: k, Strategy: StrategyPrefix, Item: b.items[k]}, true
		}
	}
	for _, k := range b.keys {
		if strings.Contains(q, k) || strings.Contains(k, q) {
			return Match{Key: k, Strategy: StrategySubstring, Item: b.items[k]}, true
		}
	}
	if kw, ok := BaseKeyword(q); ok {
		if item, ok := b.items[kw]; ok {
			return Match{Key: kw, Strategy: StrategyKeyword, Item: item}, true
		}
	}
	return Match{}, false
}

// Len returns the number of items.
func (b *PriceBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Version increases on every successful replace.
func (b *PriceBook) Version() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// Currency returns the currency declared by the loaded file, if any.
func (b *PriceBook) Currency() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.currency
}

// LoadedAt returns when the current table was installed.
func (b *PriceBook) LoadedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loadedAt
}

// Entry is one row of a price table listing.
type Entry struct {
	Label string `json:"label"`
	component.PriceItem
}

// Entries lists the table sorted by label.
func (b *PriceBook) Entries() []Entry {
	b.mu.RLock()
	out := make([]Entry, 0, len(b.items))
	for k, v := range b.items {
		out = append(out, Entry{Label: k, PriceItem: v})
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// normalise lower-cases label and collapses runs of whitespace.
func normalise(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}
