package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type jsonField struct {
	key   string
	value json.RawMessage
}

// readJSON accepts an array of records or an object of columns, where each
// column is an object keyed by row label or a plain array.
func readJSON(data []byte) (*frame, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(data) == 0 {
		return nil, fmt.Errorf("empty json document")
	}
	switch data[0] {
	case '[':
		return readJSONRecords(data)
	case '{':
		return readJSONColumns(data)
	default:
		return nil, fmt.Errorf("json document must be an array of records or an object of columns")
	}
}

func readJSONRecords(data []byte) (*frame, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode json records failed: %w", err)
	}

	var headers []string
	index := map[string]int{}
	parsed := make([][]jsonField, 0, len(records))
	for i, raw := range records {
		fields, err := decodeOrderedObject(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		for _, field := range fields {
			if _, ok := index[field.key]; !ok {
				index[field.key] = len(headers)
				headers = append(headers, field.key)
			}
		}
		parsed = append(parsed, fields)
	}

	f := &frame{headers: headers, kinds: make([]Kind, len(headers))}
	for _, fields := range parsed {
		row := make([]any, len(headers))
		for _, field := range fields {
			row[index[field.key]] = jsonCell(field.value)
		}
		f.rows = append(f.rows, row)
	}
	return f, nil
}

func readJSONColumns(data []byte) (*frame, error) {
	columns, err := decodeOrderedObject(data)
	if err != nil {
		return nil, err
	}

	headers := make([]string, 0, len(columns))
	var labels []string
	labelIndex := map[string]int{}
	cells := make([]map[string]any, len(columns))

	for c, column := range columns {
		headers = append(headers, column.key)
		cells[c] = map[string]any{}

		trimmed := bytes.TrimSpace(column.value)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var values []json.RawMessage
			if err := json.Unmarshal(trimmed, &values); err != nil {
				return nil, fmt.Errorf("decode column %q failed: %w", column.key, err)
			}
			for i, v := range values {
				label := fmt.Sprint(i)
				if _, ok := labelIndex[label]; !ok {
					labelIndex[label] = len(labels)
					labels = append(labels, label)
				}
				cells[c][label] = jsonCell(v)
			}
			continue
		}

		entries, err := decodeOrderedObject(trimmed)
		if err != nil {
			return nil, fmt.Errorf("decode column %q failed: %w", column.key, err)
		}
		for _, entry := range entries {
			if _, ok := labelIndex[entry.key]; !ok {
				labelIndex[entry.key] = len(labels)
				labels = append(labels, entry.key)
			}
			cells[c][entry.key] = jsonCell(entry.value)
		}
	}

	f := &frame{headers: headers, kinds: make([]Kind, len(headers))}
	for _, label := range labels {
		row := make([]any, len(headers))
		for c := range headers {
			row[c] = cells[c][label]
		}
		f.rows = append(f.rows, row)
	}
	return f, nil
}

// decodeOrderedObject keeps key order, which map decoding would lose.
func decodeOrderedObject(raw []byte) ([]jsonField, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode json object failed: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected json object")
	}

	var fields []jsonField
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode json key failed: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected json key")
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode json value for %q failed: %w", key, err)
		}
		fields = append(fields, jsonField{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode json object end failed: %w", err)
	}
	return fields, nil
}

// jsonCell renders a JSON value as text: strings unquoted, null as NULL,
// anything else as its compact JSON form.
func jsonCell(raw json.RawMessage) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return strings.TrimSpace(string(trimmed))
	}
	return buf.String()
}
