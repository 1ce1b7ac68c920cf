package remotesync

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var errUnexpectedResponse = errors.New("unexpected response shape")

// firstEntry returns the first key/value pair of a JSON object in document
// order. For an array it looks at the first element, which is either an
// object or a [key, value] pair. ok is false for an empty response.
func firstEntry(body []byte) (key string, value json.RawMessage, ok bool, err error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil, false, nil
	}

	switch trimmed[0] {
	case '{':
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		if _, err := dec.Token(); err != nil {
			return "", nil, false, err
		}
		if !dec.More() {
			return "", nil, false, nil
		}
		tok, err := dec.Token()
		if err != nil {
			return "", nil, false, err
		}
		key, _ = tok.(string)
		if err := dec.Decode(&value); err != nil {
			return "", nil, false, err
		}
		return key, value, true, nil

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return "", nil, false, err
		}
		if len(items) == 0 {
			return "", nil, false, nil
		}
		first := bytes.TrimSpace(items[0])
		if len(first) > 0 && first[0] == '[' {
			var pair []json.RawMessage
			if err := json.Unmarshal(first, &pair); err != nil {
				return "", nil, false, err
			}
			if len(pair) < 2 {
				return "", nil, false, nil
			}
			if err := json.Unmarshal(pair[0], &key); err != nil {
				return "", nil, false, fmt.Errorf("pair key: %w", errUnexpectedResponse)
			}
			return key, pair[1], true, nil
		}
		return firstEntry(first)
	}
	return "", nil, false, fmt.Errorf("response starts with %q: %w", trimmed[0], errUnexpectedResponse)
}
