package utils

import (
	"errors"
	"testing"
)

type sample struct {
	Name       string  `json:"name"`
	Investment float64 `json:"investment"`
}

func TestSmartParseStandard(t *testing.T) {
	got, strategy, err := SmartParse[sample]([]byte(`{"name": "Series A", "investment": 20}`))
	if err != nil {
		t.Fatalf("SmartParse: %v", err)
	}
	if strategy != StrategyJSON {
		t.Errorf("Expected json strategy, got %s", strategy)
	}
	if got.Name != "Series A" || got.Investment != 20 {
		t.Errorf("Unexpected result %+v", got)
	}
}

func TestSmartParseRepairsHandEditedJSON(t *testing.T) {
	got, strategy, err := SmartParse[sample]([]byte(`{'name': 'Series A', 'investment': 20,}`))
	if err != nil {
		t.Fatalf("SmartParse: %v", err)
	}
	if strategy == StrategyJSON {
		t.Error("Expected a lenient strategy for malformed input")
	}
	if got.Name != "Series A" || got.Investment != 20 {
		t.Errorf("Unexpected result %+v", got)
	}
}

func TestSmartParseFails(t *testing.T) {
	_, _, err := SmartParse[sample]([]byte(`[1, 2`))
	if !errors.Is(err, ErrUnparseable) {
		t.Errorf("Expected ErrUnparseable, got %v", err)
	}
}

func TestParseHJSON(t *testing.T) {
	in := []byte(`{
  # seed round
  name: "Series A"
  investment: 20
}`)
	out, err := ParseHJSON(in)
	if err != nil {
		t.Fatalf("ParseHJSON: %v", err)
	}
	got, strategy, err := SmartParse[sample](out)
	if err != nil || strategy != StrategyJSON {
		t.Fatalf("Expected converted output to be plain JSON, got %s (%v)", strategy, err)
	}
	if got.Name != "Series A" || got.Investment != 20 {
		t.Errorf("Unexpected result %+v", got)
	}
}

var errBadCode = errors.New("bad code")

type code string

func (c *code) UnmarshalText(b []byte) error {
	if string(b) != "CP" {
		return errBadCode
	}
	*c = code(b)
	return nil
}

func TestSmartParseKeepsFieldError(t *testing.T) {
	_, _, err := SmartParse[struct {
		Security code `json:"security"`
	}]([]byte(`{"security": "XYZ"}`))
	if !errors.Is(err, ErrUnparseable) {
		t.Errorf("Expected ErrUnparseable, got %v", err)
	}
	if !errors.Is(err, errBadCode) {
		t.Errorf("Expected the field error to be wrapped, got %v", err)
	}
}
