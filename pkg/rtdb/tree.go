package rtdb

import (
	"bytes"
	"encoding/json"
)

// normalize converts value into the generic JSON form used by the trees
// (map[string]any, []any, json.Number, string, bool, nil).
func normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	var data []byte
	switch v := value.(type) {
	case json.RawMessage:
		data = v
	default:
		var err error
		data, err = json.Marshal(value)
		if err != nil {
			return nil, err
		}
	}
	return decodeJSON(data)
}

func decodeJSON(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// encodeJSON renders a tree node. Nil becomes a nil RawMessage.
func encodeJSON(node any) json.RawMessage {
	if node == nil {
		return nil
	}
	data, err := json.Marshal(node)
	if err != nil {
		return nil
	}
	return data
}

// getAt returns the node at segs, or nil.
func getAt(root any, segs []string) any {
	node := root
	for _, s := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node, ok = m[s]
		if !ok {
			return nil
		}
	}
	return node
}

// setAt writes value at segs and returns the new root. A nil value removes
// the node. Objects left empty are removed as well, so an empty object never
// exists in the tree.
func setAt(root any, segs []string, value any) any {
	if len(segs) == 0 {
		return prune(value)
	}

	m, ok := root.(map[string]any)
	if !ok {
		if value == nil {
			return root
		}
		m = make(map[string]any)
	}

	child := setAt(m[segs[0]], segs[1:], value)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}

	if len(m) == 0 {
		return nil
	}
	return m
}

// prune drops empty objects from a freshly written value.
func prune(node any) any {
	m, ok := node.(map[string]any)
	if !ok {
		return node
	}
	for k, v := range m {
		if p := prune(v); p == nil {
			delete(m, k)
		} else {
			m[k] = p
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
