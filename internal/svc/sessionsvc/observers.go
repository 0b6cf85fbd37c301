package sessionsvc

import "sync"

type observer[T any] struct {
	id int
	fn func(T)
}

// observers is a subscriber list notified in registration order.
type observers[T any] struct {
	m      sync.Mutex
	nextID int
	list   []observer[T]
}

func (o *observers[T]) subscribe(fn func(T)) (unsubscribe func()) {
	o.m.Lock()
	defer o.m.Unlock()

	o.nextID++
	id := o.nextID
	o.list = append(o.list, observer[T]{id: id, fn: fn})

	var once sync.Once

	return func() {
		once.Do(func() {
			o.m.Lock()
			defer o.m.Unlock()

			for i, obs := range o.list {
				if obs.id == id {
					o.list = append(o.list[:i:i], o.list[i+1:]...)

					break
				}
			}
		})
	}
}

// notify calls every subscriber with v. It must not be called with a store lock held.
func (o *observers[T]) notify(v T) {
	o.m.Lock()
	list := o.list
	o.m.Unlock()

	for _, obs := range list {
		obs.fn(v)
	}
}
