package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// scanJSONB разбирает значение JSONB колонки в dest.
// NULL и пустое значение оставляют dest в состоянии empty.
func scanJSONB(value interface{}, dest interface{}, empty func()) error {
	if value == nil {
		empty()
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		empty()
		return nil
	}

	return json.Unmarshal(bytes, dest)
}

// jsonbArray сериализует срез в JSONB, пустой срез пишется как "[]", а не null
func jsonbArray(v interface{}, length int) (driver.Value, error) {
	if length == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(v)
}

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
func (o *StringArray) Scan(value interface{}) error {
	return scanJSONB(value, o, func() { *o = StringArray{} })
}

// Value реализует интерфейс driver.Valuer для StringArray
func (o StringArray) Value() (driver.Value, error) {
	return jsonbArray([]string(o), len(o))
}
