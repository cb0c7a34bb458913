package ventusky

import (
	"bytes"
	"encoding/json"
)

// Optional holds a value that a scraped page may or may not provide.
// The zero value is absent and serializes as JSON null.
type Optional[T any] struct {
	value T
	ok    bool
}

func Some[T any](value T) Optional[T] {
	return Optional[T]{value: value, ok: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

func (o Optional[T]) IsPresent() bool {
	return o.ok
}

// OrElse returns the value, or fallback when absent.
func (o Optional[T]) OrElse(fallback T) T {
	if !o.ok {
		return fallback
	}
	return o.value
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = None[T]()
		return nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*o = Some(value)
	return nil
}
