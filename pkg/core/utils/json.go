package utils

import (
	"encoding/json"
	"errors"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// ErrUnparseable is returned when no parsing strategy accepts the input.
var ErrUnparseable = errors.New("all parsing strategies failed")

// Strategy names the parser that accepted a document.
type Strategy string

const (
	StrategyJSON     Strategy = "json"
	StrategyRepaired Strategy = "repaired"
	StrategyHJSON    Strategy = "hjson"
)

// RepairJSON fixes hand-edited JSON: unquoted keys, single quotes, trailing
// commas, comments and unclosed brackets.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("json repair: %w", err)
	}
	return repaired, nil
}

// ParseHJSON converts Hjson to standard JSON so that the result can be
// decoded with encoding/json and its TextUnmarshaler hooks.
func ParseHJSON(data []byte) ([]byte, error) {
	var tree interface{}
	if err := hjson.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("hjson parse: %w", err)
	}
	out, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("hjson to json: %w", err)
	}
	return out, nil
}

// SmartParse decodes input into a fresh T, trying in order:
//  1. Standard JSON
//  2. Repaired JSON
//  3. Hjson (most lenient)
//
// Each attempt starts from the zero value so a failed strategy never leaks
// partially decoded fields into the next. On failure the error wraps both
// ErrUnparseable and the last strategy's error, so field-level errors from
// UnmarshalText hooks stay reachable with errors.Is.
func SmartParse[T any](input []byte) (T, Strategy, error) {
	var out T
	if err := json.Unmarshal(input, &out); err == nil {
		return out, StrategyJSON, nil
	}

	if repaired, err := RepairJSON(string(input)); err == nil {
		var candidate T
		if err := json.Unmarshal([]byte(repaired), &candidate); err == nil {
			return candidate, StrategyRepaired, nil
		}
	}

	var lastErr error
	if converted, err := ParseHJSON(input); err == nil {
		var candidate T
		if err = json.Unmarshal(converted, &candidate); err == nil {
			return candidate, StrategyHJSON, nil
		}
		lastErr = err
	} else {
		lastErr = err
	}

	var zero T
	return zero, "", fmt.Errorf("%w: %w", ErrUnparseable, lastErr)
}
