package tasks

import (
	"errors"
	"fmt"
)

type Type string

const (
	TypeArchive Type = "archive"
	TypeRepair  Type = "repair"
)

// Task is one unit of background work. Data carries the raw image for
// archive tasks and is empty for repair.
type Task struct {
	Type Type
	Data []byte
}

func Archive(data []byte) Task {
	return Task{Type: TypeArchive, Data: data}
}

func Repair() Task {
	return Task{Type: TypeRepair}
}

var ErrMalformed = errors.New("malformed task")

// Values encodes a task as Redis stream fields. Image bytes are stored as a
// binary string, not JSON, so they survive unchanged.
func (t Task) Values() map[string]interface{} {
	return map[string]interface{}{
		"type": string(t.Type),
		"data": t.Data,
	}
}

func Decode(values map[string]interface{}) (Task, error) {
	typ, ok := values["type"].(string)
	if !ok || typ == "" {
		return Task{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	t := Task{Type: Type(typ)}
	switch data := values["data"].(type) {
	case string:
		if data != "" {
			t.Data = []byte(data)
		}
	case []byte:
		t.Data = data
	case nil:
	default:
		return Task{}, fmt.Errorf("%w: data is %T", ErrMalformed, data)
	}
	return t, nil
}
