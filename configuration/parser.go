package configuration

import (
	"encoding/json"
	"strings"

	"github.com/knadh/koanf"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

// mapToLowerKeys lower-cases all keys of the given map, including the keys of nested maps and of maps inside lists.
func mapToLowerKeys(m map[string]interface{}) {
	for key, val := range m {
		val = lowerKeys(val)

		lower := strings.ToLower(key)
		if key != lower {
			// remove old key (not lower-cased)
			delete(m, key)
		}

		m[lower] = val
	}
}

func lowerKeys(value interface{}) interface{} {
	switch typedValue := value.(type) {
	case map[string]interface{}:
		mapToLowerKeys(typedValue)

		return typedValue
	case map[interface{}]interface{}:
		// yaml.v2 decodes nested maps with interface keys
		converted := cast.ToStringMap(typedValue)
		mapToLowerKeys(converted)

		return converted
	case []interface{}:
		for i, element := range typedValue {
			typedValue[i] = lowerKeys(element)
		}

		return typedValue
	default:
		return value
	}
}

// lowerParser implements koanf.Parser on top of the (un)marshal functions of a file format.
// all config keys are lower cased.
type lowerParser struct {
	unmarshal func([]byte, interface{}) error
	marshal   func(interface{}) ([]byte, error)
}

// Unmarshal parses the given bytes into a config map with lower-cased keys.
func (p *lowerParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := p.unmarshal(b, &out); err != nil {
		return nil, err
	}

	mapToLowerKeys(out)

	return out, nil
}

// Marshal is required by koanf.Parser.
func (p *lowerParser) Marshal(o map[string]interface{}) ([]byte, error) {
	return p.marshal(o)
}

// JSONLowerParser returns a JSON parser that lower-cases all config keys.
func JSONLowerParser() koanf.Parser {
	return &lowerParser{unmarshal: json.Unmarshal, marshal: json.Marshal}
}

// YAMLLowerParser returns a YAML parser that lower-cases all config keys.
func YAMLLowerParser() koanf.Parser {
	return &lowerParser{unmarshal: yaml.Unmarshal, marshal: yaml.Marshal}
}

// TOMLLowerParser returns a TOML parser that lower-cases all config keys.
func TOMLLowerParser() koanf.Parser {
	return &lowerParser{unmarshal: toml.Unmarshal, marshal: toml.Marshal}
}
