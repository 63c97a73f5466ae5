// Package validation turns decoded JSON bodies into well-formed requests.
// Everything here is pure: no state is built and nothing is logged.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/hedgefund/internal/contracts"
)

// Required fields, checked in this order; the first missing one is reported
var (
	BacktestRequired  = []string{"tickers", "start_date", "end_date", "initial_capital"}
	HedgeFundRequired = []string{"tickers", "start_date", "end_date"}
)

// maxShares is the largest share count a float64 holds exactly
const maxShares = 1 << 53

// Defaults are the values owned by the process rather than the caller
type Defaults struct {
	ModelName     string
	ModelProvider string
	AnalysisCash  float64
}

// ParseBacktestRequest validates and normalizes a backtest request body
func ParseBacktestRequest(raw map[string]any, d Defaults) (*contracts.BacktestRequest, error) {
	if err := requireFields(raw, BacktestRequired); err != nil {
		return nil, err
	}

	tickers, err := parseTickers(raw["tickers"])
	if err != nil {
		return nil, err
	}
	start, end, err := parseDateRange(raw)
	if err != nil {
		return nil, err
	}

	capital, err := toFloat("initial_capital", raw["initial_capital"])
	if err != nil {
		return nil, err
	}
	if capital < 0 {
		return nil, invalidValue("initial_capital", "must be >= 0")
	}

	margin := 0.0
	if v, ok := present(raw, "initial_margin_requirement"); ok {
		if margin, err = toFloat("initial_margin_requirement", v); err != nil {
			return nil, err
		}
		if margin < 0 {
			return nil, invalidValue("initial_margin_requirement", "must be >= 0")
		}
	}

	model, provider, err := parseModel(raw, d)
	if err != nil {
		return nil, err
	}
	analysts, err := parseAnalysts(raw)
	if err != nil {
		return nil, err
	}

	return &contracts.BacktestRequest{
		Tickers:                  tickers,
		StartDate:                start,
		EndDate:                  end,
		InitialCapital:           capital,
		ModelName:                model,
		ModelProvider:            provider,
		SelectedAnalysts:         analysts,
		InitialMarginRequirement: margin,
	}, nil
}

// ParseHedgeFundRequest validates and normalizes a hedge fund analysis body
func ParseHedgeFundRequest(raw map[string]any, d Defaults) (*contracts.HedgeFundRequest, error) {
	if err := requireFields(raw, HedgeFundRequired); err != nil {
		return nil, err
	}

	tickers, err := parseTickers(raw["tickers"])
	if err != nil {
		return nil, err
	}
	start, end, err := parseDateRange(raw)
	if err != nil {
		return nil, err
	}

	portfolio, err := parsePortfolio(raw, tickers, d)
	if err != nil {
		return nil, err
	}

	showReasoning := false
	if v, ok := present(raw, "show_reasoning"); ok {
		b, isBool := v.(bool)
		if !isBool {
			return nil, invalidType("show_reasoning", "must be a boolean")
		}
		showReasoning = b
	}

	model, provider, err := parseModel(raw, d)
	if err != nil {
		return nil, err
	}
	analysts, err := parseAnalysts(raw)
	if err != nil {
		return nil, err
	}

	return &contracts.HedgeFundRequest{
		Tickers:          tickers,
		StartDate:        start,
		EndDate:          end,
		Portfolio:        portfolio,
		ShowReasoning:    showReasoning,
		SelectedAnalysts: analysts,
		ModelName:        model,
		ModelProvider:    provider,
	}, nil
}

// present returns a field that exists and is not JSON null
func present(raw map[string]any, key string) (any, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func requireFields(raw map[string]any, fields []string) error {
	for _, f := range fields {
		if _, ok := present(raw, f); !ok {
			return &contracts.ValidationError{Kind: contracts.MissingField, Field: f}
		}
	}
	return nil
}

func invalidType(field, reason string) error {
	return &contracts.ValidationError{Kind: contracts.InvalidType, Field: field, Reason: reason}
}

func invalidValue(field, reason string) error {
	return &contracts.ValidationError{Kind: contracts.InvalidValue, Field: field, Reason: reason}
}

func parseTickers(v any) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		if typed, isTyped := v.([]string); isTyped {
			list = make([]any, len(typed))
			for i, s := range typed {
				list[i] = s
			}
		} else {
			return nil, invalidType("tickers", "must be a list of strings")
		}
	}
	if len(list) == 0 {
		return nil, invalidValue("tickers", "must not be empty")
	}

	tickers := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for i, item := range list {
		s, isString := item.(string)
		if !isString {
			return nil, invalidType("tickers", fmt.Sprintf("element %d is not a string", i))
		}
		if strings.TrimSpace(s) == "" {
			return nil, invalidValue("tickers", fmt.Sprintf("element %d is empty", i))
		}
		if _, dup := seen[s]; dup {
			return nil, invalidValue("tickers", fmt.Sprintf("duplicate ticker %q", s))
		}
		seen[s] = struct{}{}
		tickers = append(tickers, s)
	}
	return tickers, nil
}

func parseDate(field string, v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, invalidType(field, "must be a YYYY-MM-DD string")
	}
	t, err := time.Parse(contracts.DateLayout, s)
	if err != nil {
		return time.Time{}, invalidValue(field, fmt.Sprintf("%q is not a YYYY-MM-DD date", s))
	}
	return t, nil
}

func parseDateRange(raw map[string]any) (time.Time, time.Time, error) {
	start, err := parseDate("start_date", raw["start_date"])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate("end_date", raw["end_date"])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, invalidValue("start_date", "must not be after end_date")
	}
	return start, end, nil
}

// toFloat coerces JSON numbers and numeric strings
func toFloat(field string, v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, invalidType(field, "must be a number")
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, invalidType(field, fmt.Sprintf("%q is not a number", n))
		}
		f = parsed
	default:
		return 0, invalidType(field, "must be a number")
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalidValue(field, "must be finite")
	}
	return f, nil
}

func parseModel(raw map[string]any, d Defaults) (string, string, error) {
	model, err := optionalString(raw, "model_name", d.ModelName)
	if err != nil {
		return "", "", err
	}
	provider, err := optionalString(raw, "model_provider", d.ModelProvider)
	if err != nil {
		return "", "", err
	}
	return model, provider, nil
}

func optionalString(raw map[string]any, field, fallback string) (string, error) {
	v, ok := present(raw, field)
	if !ok {
		return fallback, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", invalidType(field, "must be a string")
	}
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	return s, nil
}

// parseAnalysts always returns a fresh slice, never one shared between calls
func parseAnalysts(raw map[string]any) ([]string, error) {
	analysts := make([]string, 0)

	v, ok := present(raw, "selected_analysts")
	if !ok {
		return analysts, nil
	}
	list, isList := v.([]any)
	if !isList {
		return nil, invalidType("selected_analysts", "must be a list of strings")
	}
	for i, item := range list {
		s, isString := item.(string)
		if !isString {
			return nil, invalidType("selected_analysts", fmt.Sprintf("element %d is not a string", i))
		}
		analysts = append(analysts, s)
	}
	return analysts, nil
}

func parsePortfolio(raw map[string]any, tickers []string, d Defaults) (contracts.PortfolioInput, error) {
	out := contracts.PortfolioInput{
		Cash:      d.AnalysisCash,
		Positions: make(map[string]int64),
	}

	v, ok := present(raw, "portfolio")
	if !ok {
		return out, nil
	}
	obj, isObj := v.(map[string]any)
	if !isObj {
		return out, invalidType("portfolio", "must be an object")
	}

	if c, has := present(obj, "cash"); has {
		cash, err := toFloat("portfolio.cash", c)
		if err != nil {
			return out, err
		}
		if cash < 0 {
			return out, invalidValue("portfolio.cash", "must be >= 0")
		}
		out.Cash = cash
	}

	if m, has := present(obj, "margin_requirement"); has {
		margin, err := toFloat("portfolio.margin_requirement", m)
		if err != nil {
			return out, err
		}
		if margin < 0 {
			return out, invalidValue("portfolio.margin_requirement", "must be >= 0")
		}
		out.MarginRequirement = margin
	}

	if p, has := present(obj, "positions"); has {
		positions, isMap := p.(map[string]any)
		if !isMap {
			return out, invalidType("portfolio.positions", "must be an object of ticker to shares")
		}
		known := make(map[string]bool, len(tickers))
		for _, t := range tickers {
			known[t] = true
		}
		for ticker, shares := range positions {
			field := "portfolio.positions." + ticker
			if !known[ticker] {
				return out, invalidValue(field, "ticker is not in tickers")
			}
			n, err := toFloat(field, shares)
			if err != nil {
				return out, err
			}
			if n != math.Trunc(n) {
				return out, invalidValue(field, "share count must be a whole number")
			}
			if math.Abs(n) > maxShares {
				return out, invalidValue(field, "share count out of range")
			}
			out.Positions[ticker] = int64(n)
		}
	}

	return out, nil
}
