package reminder

import (
	"encoding/json"
	"fmt"
)

// DecodeList parses a persisted collection. A record that does not decode
// cleanly is salvaged with a zero DueAt instead of failing the whole list.
func DecodeList(data []byte) ([]*Reminder, error) {
	if len(data) == 0 {
		return []*Reminder{}, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode reminder list: %w", err)
	}
	list := make([]*Reminder, 0, len(raw))
	for _, item := range raw {
		list = append(list, decodeOne(item))
	}
	return list, nil
}

func decodeOne(item json.RawMessage) *Reminder {
	var r Reminder
	if err := json.Unmarshal(item, &r); err == nil {
		return &r
	}
	var loose map[string]interface{}
	if err := json.Unmarshal(item, &loose); err != nil {
		return &Reminder{}
	}
	return Salvage(loose)
}

// Salvage keeps whatever identity fields survive in a malformed record.
func Salvage(fields map[string]interface{}) *Reminder {
	r := &Reminder{}
	if s, ok := fields["id"].(string); ok {
		r.ID = s
	}
	if s, ok := fields["title"].(string); ok {
		r.Title = s
	}
	if b, ok := fields["done"].(bool); ok {
		r.Done = b
	}
	return r
}

// EncodeList serializes a collection in order.
func EncodeList(list []*Reminder) ([]byte, error) {
	if list == nil {
		list = []*Reminder{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reminder list: %w", err)
	}
	return data, nil
}
