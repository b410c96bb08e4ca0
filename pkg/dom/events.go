package dom

// Event is delivered to listeners by Dispatch.
type Event struct {
	Type   string
	Target *Node
	Key    string // For keyboard events
	Data   any
}

// Common event types.
const (
	EventInput   = "input"
	EventChange  = "change"
	EventClick   = "click"
	EventKeyDown = "keydown"
)

type listener struct {
	fn func(Event)
}

// AddEventListener registers fn for events of the given type on n. The
// returned function removes the listener.
func (n *Node) AddEventListener(typ string, fn func(Event)) (remove func()) {
	l := &listener{fn: fn}
	if n.listeners == nil {
		n.listeners = make(map[string][]*listener)
	}
	n.listeners[typ] = append(n.listeners[typ], l)
	return func() {
		ls := n.listeners[typ]
		for i, x := range ls {
			if x == l {
				n.listeners[typ] = append(ls[:i:i], ls[i+1:]...)
				return
			}
		}
	}
}

// Dispatch delivers ev to n's listeners for ev.Type, in registration
// order. Events do not bubble.
func (n *Node) Dispatch(ev Event) {
	if ev.Target == nil {
		ev.Target = n
	}
	ls := append([]*listener(nil), n.listeners[ev.Type]...)
	for _, l := range ls {
		l.fn(ev)
	}
}

// ListenerCount returns the number of listeners registered for typ.
func (n *Node) ListenerCount(typ string) int {
	return len(n.listeners[typ])
}
