package pricing

import "github.com/reisinl/veg-shop/internal/entity"

// Snapshot is a Catalog over items already loaded by the caller.
type Snapshot struct {
	items map[int64]entity.Item
	boxes map[entity.BoxSize]entity.Item
}

// NewSnapshot indexes items by id and premade boxes by size. The first box
// seen for a size wins.
func NewSnapshot(items ...entity.Item) *Snapshot {
	s := &Snapshot{
		items: make(map[int64]entity.Item, len(items)),
		boxes: make(map[entity.BoxSize]entity.Item),
	}
	for _, it := range items {
		s.items[it.ID] = it
		if it.Kind == entity.ItemBox && it.Box != nil {
			if _, ok := s.boxes[it.Box.Size]; !ok {
				s.boxes[it.Box.Size] = it
			}
		}
	}
	return s
}

func (s *Snapshot) Item(id int64) (entity.Item, bool) {
	it, ok := s.items[id]
	return it, ok
}

func (s *Snapshot) Box(size entity.BoxSize) (entity.Item, bool) {
	it, ok := s.boxes[size]
	return it, ok
}
