package discovery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"toolhub/internal/domain"
)

var errMissingTools = errors.New(`response has no "tools" array`)

// decodeEnvelope splits a discovery response into raw tool records.
func decodeEnvelope(body []byte) ([]json.RawMessage, error) {
	var envelope struct {
		Tools json.RawMessage `json:"tools"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode discovery response: %w", err)
	}
	trimmed := bytes.TrimSpace(envelope.Tools)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errMissingTools
	}
	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("decode tools array: %w", err)
	}
	return records, nil
}

type wireTool struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Endpoint     string          `json:"endpoint"`
	Parameters   json.RawMessage `json:"parameters"`
	CacheEnabled bool            `json:"cache_enabled"`
	CacheRules   json.RawMessage `json:"cache_rules"`
}

// decodeRecord parses one tool record. The returned name is best effort so
// that failures can still be attributed.
func decodeRecord(provider string, raw json.RawMessage) (domain.ToolDescriptor, string, error) {
	var wire wireTool
	if err := json.Unmarshal(raw, &wire); err != nil {
		return domain.ToolDescriptor{}, "", fmt.Errorf("decode tool record: %w", err)
	}
	name := strings.TrimSpace(wire.Name)

	params, err := decodeParameters(wire.Parameters)
	if err != nil {
		return domain.ToolDescriptor{}, name, err
	}
	keyBy, err := decodeCacheRules(wire.CacheRules)
	if err != nil {
		return domain.ToolDescriptor{}, name, err
	}

	return domain.ToolDescriptor{
		Provider:    provider,
		Name:        name,
		Description: wire.Description,
		Endpoint:    strings.TrimSpace(wire.Endpoint),
		Parameters:  params,
		Cache: domain.CachePolicy{
			Enabled: wire.CacheEnabled,
			KeyBy:   keyBy,
		},
	}, name, nil
}

// decodeParameters keeps the declaration order of the wire object, which a
// plain map decode would lose. A list of {"name", "type", "description"}
// objects is accepted as well.
func decodeParameters(raw json.RawMessage) ([]domain.ParameterSpec, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '{':
		return decodeParameterObject(trimmed)
	case '[':
		return decodeParameterList(trimmed)
	default:
		return nil, errors.New("parameters must be an object or a list")
	}
}

func decodeParameterObject(raw []byte) ([]domain.ParameterSpec, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	var params []domain.ParameterSpec
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode parameters: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("decode parameters: unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode parameter %q: %w", name, err)
		}
		param, err := decodeParameterValue(name, value)
		if err != nil {
			return nil, err
		}
		params = append(params, param)
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	return params, nil
}

func decodeParameterList(raw []byte) ([]domain.ParameterSpec, error) {
	var items []struct {
		Name        string `json:"name"`
		Type        string `json:"type"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	params := make([]domain.ParameterSpec, 0, len(items))
	for _, item := range items {
		params = append(params, newParameter(item.Name, item.Type, item.Description))
	}
	return params, nil
}

// decodeParameterValue accepts ["type", "description"], {"type", "description"}
// or a bare "type" string.
func decodeParameterValue(name string, raw json.RawMessage) (domain.ParameterSpec, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return domain.ParameterSpec{}, fmt.Errorf("parameter %q: empty definition", name)
	}
	switch trimmed[0] {
	case '[':
		var pair []any
		if err := json.Unmarshal(trimmed, &pair); err != nil {
			return domain.ParameterSpec{}, fmt.Errorf("parameter %q: %w", name, err)
		}
		if len(pair) == 0 || len(pair) > 2 {
			return domain.ParameterSpec{}, fmt.Errorf("parameter %q: expected [type, description]", name)
		}
		tag, ok := pair[0].(string)
		if !ok {
			return domain.ParameterSpec{}, fmt.Errorf("parameter %q: type must be a string", name)
		}
		var desc string
		if len(pair) == 2 {
			if desc, ok = pair[1].(string); !ok {
				return domain.ParameterSpec{}, fmt.Errorf("parameter %q: description must be a string", name)
			}
		}
		return newParameter(name, tag, desc), nil
	case '{':
		var obj struct {
			Type        *string `json:"type"`
			Description string  `json:"description"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return domain.ParameterSpec{}, fmt.Errorf("parameter %q: %w", name, err)
		}
		if obj.Type == nil {
			return domain.ParameterSpec{}, fmt.Errorf("parameter %q: type is required", name)
		}
		return newParameter(name, *obj.Type, obj.Description), nil
	case '"':
		var tag string
		if err := json.Unmarshal(trimmed, &tag); err != nil {
			return domain.ParameterSpec{}, fmt.Errorf("parameter %q: %w", name, err)
		}
		return newParameter(name, tag, ""), nil
	default:
		return domain.ParameterSpec{}, fmt.Errorf("parameter %q: unsupported definition", name)
	}
}

func newParameter(name, tag, desc string) domain.ParameterSpec {
	typ, _ := domain.ParseParamType(tag)
	return domain.ParameterSpec{
		Name:        strings.TrimSpace(name),
		Type:        typ,
		RawType:     tag,
		Description: desc,
	}
}

// decodeCacheRules returns the sorted parameter names a cache key is built
// from. Rules may be an object whose keys name parameters, or a list of names.
func decodeCacheRules(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var names []string
	switch trimmed[0] {
	case '{':
		var rules map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &rules); err != nil {
			return nil, fmt.Errorf("decode cache_rules: %w", err)
		}
		for name := range rules {
			names = append(names, name)
		}
	case '[':
		if err := json.Unmarshal(trimmed, &names); err != nil {
			return nil, fmt.Errorf("decode cache_rules: %w", err)
		}
	default:
		return nil, errors.New("cache_rules must be an object or a list of parameter names")
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)
	out := names[:1]
	for _, name := range names[1:] {
		if name != out[len(out)-1] {
			out = append(out, name)
		}
	}
	return out, nil
}
