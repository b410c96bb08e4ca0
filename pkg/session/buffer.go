package session

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// outbox holds input values waiting to be sent, ordered by last change.
// It is guarded by the transport lock.
type outbox struct {
	values *orderedmap.OrderedMap[string, any]
	limit  int
}

type pending struct {
	id    string
	value any
}

func newOutbox(limit int) *outbox {
	return &outbox{values: orderedmap.New[string, any](), limit: limit}
}

// put records value for id, moving id to the back. When the bound is
// exceeded the oldest id is evicted and returned.
func (o *outbox) put(id string, value any) (evicted string, ok bool) {
	o.values.Delete(id)
	o.values.Set(id, value)
	if o.limit > 0 && o.values.Len() > o.limit {
		oldest := o.values.Oldest()
		o.values.Delete(oldest.Key)
		return oldest.Key, true
	}
	return "", false
}

// take empties the outbox and returns its entries in order.
func (o *outbox) take() []pending {
	if o.values.Len() == 0 {
		return nil
	}
	out := make([]pending, 0, o.values.Len())
	for p := o.values.Oldest(); p != nil; p = p.Next() {
		out = append(out, pending{id: p.Key, value: p.Value})
	}
	o.values = orderedmap.New[string, any]()
	return out
}

// restore puts back a batch that failed to send. Ids changed since the
// batch was taken keep their newer value and position.
func (o *outbox) restore(batch []pending) {
	next := orderedmap.New[string, any]()
	for _, p := range batch {
		if _, newer := o.values.Get(p.id); !newer {
			next.Set(p.id, p.value)
		}
	}
	for p := o.values.Oldest(); p != nil; p = p.Next() {
		next.Set(p.Key, p.Value)
	}
	o.values = next
	for o.limit > 0 && o.values.Len() > o.limit {
		o.values.Delete(o.values.Oldest().Key)
	}
}

func (o *outbox) len() int { return o.values.Len() }

// has reports whether id is waiting to be sent.
func (o *outbox) has(id string) bool {
	_, ok := o.values.Get(id)
	return ok
}

func toUpdate(batch []pending) (map[string]any, []string) {
	values := make(map[string]any, len(batch))
	order := make([]string, 0, len(batch))
	for _, p := range batch {
		values[p.id] = p.value
		order = append(order, p.id)
	}
	return values, order
}
