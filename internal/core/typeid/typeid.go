package typeid

import (
	"fmt"
	"reflect"
	"sync"
)

// ID is a process-wide interned identity token. IDs start at 1; the zero
// value never identifies anything.
type ID uint32

var (
	mu     sync.RWMutex
	byKey  = make(map[any]ID, 64)
	names  = []string{"<none>"}
	nextID = ID(1)
)

// Of returns the token for type T. Repeated calls return the same ID.
func Of[T any]() ID {
	t := reflect.TypeFor[T]()
	return intern(t, t.String())
}

// Named returns the token for a string key. Named keys never collide with
// type keys, so a callback system named "Foo" differs from a type Foo.
func Named(name string) ID {
	return intern(namedKey(name), name)
}

type namedKey string

func intern(key any, name string) ID {
	mu.RLock()
	id, ok := byKey[key]
	mu.RUnlock()
	if ok {
		return id
	}

	mu.Lock()
	defer mu.Unlock()
	if id, ok := byKey[key]; ok {
		return id
	}
	id = nextID
	nextID++
	byKey[key] = id
	names = append(names, name)
	return id
}

// String returns the name the token was interned under.
func (id ID) String() string {
	mu.RLock()
	defer mu.RUnlock()
	if int(id) < len(names) {
		return names[id]
	}
	return fmt.Sprintf("typeid(%d)", uint32(id))
}
