// Package id generates the ULID identifiers used as primary keys. ULIDs sort
// lexically by creation time, which is what list pagination relies on.
package id

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mutex   sync.Mutex
	entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

type ID struct {
	value ulid.ULID
}

func NewFromTime(t time.Time) (*ID, error) {
	mutex.Lock()
	defer mutex.Unlock()

	id, err := ulid.New(uint64(t.UnixMilli()), entropy)
	if err != nil {
		return nil, err
	}

	return &ID{id}, nil
}

func NewStringFromTime(t time.Time) (string, error) {
	id, err := NewFromTime(t)
	if err != nil {
		return "", err
	}

	return id.value.String(), nil
}

func NewString() (string, error) {
	return NewStringFromTime(time.Now())
}

// Must returns a new id and panics if the monotonic entropy overflows within
// one millisecond.
func Must() string {
	s, err := NewString()
	if err != nil {
		panic(err)
	}
	return s
}

func Parse(s string) (*ID, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return nil, err
	}

	return &ID{id}, nil
}

func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

func (id *ID) Time() time.Time {
	return ulid.Time(id.value.Time())
}

func (id *ID) String() string {
	return id.value.String()
}
