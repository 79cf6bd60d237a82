package model

import "encoding/json"

// Optional — значение nullable-поля в частичном обновлении.
// Различает три состояния JSON-поля:
//   - поле отсутствует: Set=false — «не изменять»;
//   - поле задано как null: Set=true, Value=nil — «очистить»;
//   - поле задано значением: Set=true, Value указывает на него.
//
// Обычный указатель здесь не подходит: после json.Unmarshal
// отсутствующее поле и явный null неотличимы.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON вызывается только для присутствующих полей,
// поэтому сам факт вызова означает Set=true.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// OptionalOf возвращает заданное значение поля.
func OptionalOf[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// OptionalNull возвращает явный null («очистить поле»).
func OptionalNull[T any]() Optional[T] {
	return Optional[T]{Set: true}
}
