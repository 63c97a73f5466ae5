package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/hedgefund/internal/contracts"
)

var defaults = Defaults{ModelName: "gpt-4o", ModelProvider: "OpenAI", AnalysisCash: 100000}

func decode(t *testing.T, body string) map[string]any {
	t.Helper()
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw
}

func requireValidation(t *testing.T, err error, kind contracts.ValidationKind, field string) {
	t.Helper()
	var ve *contracts.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, kind, ve.Kind)
	assert.Equal(t, field, ve.Field)
}

func TestParseBacktestRequest_Defaults(t *testing.T) {
	req, err := ParseBacktestRequest(decode(t, `{"tickers":["AAPL"],"start_date":"2024-01-01","end_date":"2024-06-01","initial_capital":10000}`), defaults)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL"}, req.Tickers)
	assert.Equal(t, 10000.0, req.InitialCapital)
	assert.Equal(t, "gpt-4o", req.ModelName)
	assert.Equal(t, "OpenAI", req.ModelProvider)
	assert.Equal(t, 0.0, req.InitialMarginRequirement)
	require.NotNil(t, req.SelectedAnalysts)
	assert.Empty(t, req.SelectedAnalysts)
	assert.Equal(t, "2024-06-01", req.EndDate.Format(contracts.DateLayout))
}

func TestParseBacktestRequest_FirstMissingField(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"empty body", `{}`, "tickers"},
		{"only tickers", `{"tickers":["AAPL"]}`, "start_date"},
		{"no end", `{"tickers":["AAPL"],"start_date":"2024-01-01","initial_capital":1}`, "end_date"},
		{"no capital", `{"tickers":["AAPL"],"start_date":"2024-01-01","end_date":"2024-01-02"}`, "initial_capital"},
		{"null counts as missing", `{"tickers":["AAPL"],"start_date":"2024-01-01","end_date":"2024-01-02","initial_capital":null}`, "initial_capital"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseBacktestRequest(decode(t, tt.body), defaults)
			assert.Nil(t, req)
			requireValidation(t, err, contracts.MissingField, tt.field)
			assert.Equal(t, "Missing required parameter: "+tt.field, err.Error())
		})
	}
}

func TestParseBacktestRequest_Coercion(t *testing.T) {
	req, err := ParseBacktestRequest(decode(t, `{"tickers":["AAPL","MSFT"],"start_date":"2024-01-01","end_date":"2024-01-01",
		"initial_capital":"2500.5","initial_margin_requirement":"0.5","selected_analysts":["momentum"],"model_name":"llama3","model_provider":"Ollama"}`), defaults)
	require.NoError(t, err)

	assert.Equal(t, 2500.5, req.InitialCapital)
	assert.Equal(t, 0.5, req.InitialMarginRequirement)
	assert.Equal(t, []string{"momentum"}, req.SelectedAnalysts)
	assert.Equal(t, "llama3", req.ModelName)
	assert.Equal(t, "Ollama", req.ModelProvider)
}

func TestParseBacktestRequest_Invalid(t *testing.T) {
	base := `"start_date":"2024-01-01","end_date":"2024-02-01"`
	tests := []struct {
		name  string
		body  string
		kind  contracts.ValidationKind
		field string
	}{
		{"capital not numeric", `{"tickers":["A"],` + base + `,"initial_capital":"lots"}`, contracts.InvalidType, "initial_capital"},
		{"capital bool", `{"tickers":["A"],` + base + `,"initial_capital":true}`, contracts.InvalidType, "initial_capital"},
		{"capital negative", `{"tickers":["A"],` + base + `,"initial_capital":-1}`, contracts.InvalidValue, "initial_capital"},
		{"capital NaN string", `{"tickers":["A"],` + base + `,"initial_capital":"NaN"}`, contracts.InvalidValue, "initial_capital"},
		{"margin not numeric", `{"tickers":["A"],` + base + `,"initial_capital":1,"initial_margin_requirement":"x"}`, contracts.InvalidType, "initial_margin_requirement"},
		{"margin negative", `{"tickers":["A"],` + base + `,"initial_capital":1,"initial_margin_requirement":-0.1}`, contracts.InvalidValue, "initial_margin_requirement"},
		{"tickers not list", `{"tickers":"AAPL",` + base + `,"initial_capital":1}`, contracts.InvalidType, "tickers"},
		{"tickers empty", `{"tickers":[],` + base + `,"initial_capital":1}`, contracts.InvalidValue, "tickers"},
		{"tickers duplicate", `{"tickers":["A","A"],` + base + `,"initial_capital":1}`, contracts.InvalidValue, "tickers"},
		{"ticker blank", `{"tickers":[" "],` + base + `,"initial_capital":1}`, contracts.InvalidValue, "tickers"},
		{"ticker not string", `{"tickers":[1],` + base + `,"initial_capital":1}`, contracts.InvalidType, "tickers"},
		{"bad date", `{"tickers":["A"],"start_date":"01/02/2024","end_date":"2024-02-01","initial_capital":1}`, contracts.InvalidValue, "start_date"},
		{"date not string", `{"tickers":["A"],"start_date":"2024-01-01","end_date":20240201,"initial_capital":1}`, contracts.InvalidType, "end_date"},
		{"start after end", `{"tickers":["A"],"start_date":"2024-03-01","end_date":"2024-02-01","initial_capital":1}`, contracts.InvalidValue, "start_date"},
		{"analysts not list", `{"tickers":["A"],` + base + `,"initial_capital":1,"selected_analysts":"momentum"}`, contracts.InvalidType, "selected_analysts"},
		{"model not string", `{"tickers":["A"],` + base + `,"initial_capital":1,"model_name":4}`, contracts.InvalidType, "model_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBacktestRequest(decode(t, tt.body), defaults)
			requireValidation(t, err, tt.kind, tt.field)
		})
	}
}

func TestParseBacktestRequest_FreshAnalystsPerCall(t *testing.T) {
	body := `{"tickers":["AAPL"],"start_date":"2024-01-01","end_date":"2024-01-02","initial_capital":1}`

	first, err := ParseBacktestRequest(decode(t, body), defaults)
	require.NoError(t, err)
	first.SelectedAnalysts = append(first.SelectedAnalysts, "leaked")

	second, err := ParseBacktestRequest(decode(t, body), defaults)
	require.NoError(t, err)
	assert.Empty(t, second.SelectedAnalysts)
}

func TestParseHedgeFundRequest(t *testing.T) {
	req, err := ParseHedgeFundRequest(decode(t, `{"tickers":["MSFT","NVDA"],"start_date":"2024-01-01","end_date":"2024-01-31"}`), defaults)
	require.NoError(t, err)

	assert.Equal(t, []string{"MSFT", "NVDA"}, req.Tickers)
	assert.False(t, req.ShowReasoning)
	assert.Equal(t, 100000.0, req.Portfolio.Cash)
	assert.Empty(t, req.Portfolio.Positions)
	assert.NotNil(t, req.SelectedAnalysts)
	assert.Equal(t, "gpt-4o", req.ModelName)
}

func TestParseHedgeFundRequest_Portfolio(t *testing.T) {
	req, err := ParseHedgeFundRequest(decode(t, `{"tickers":["MSFT"],"start_date":"2024-01-01","end_date":"2024-01-31",
		"show_reasoning":true,"portfolio":{"cash":5000,"positions":{"MSFT":10},"margin_requirement":0.5}}`), defaults)
	require.NoError(t, err)

	assert.True(t, req.ShowReasoning)
	assert.Equal(t, 5000.0, req.Portfolio.Cash)
	assert.Equal(t, int64(10), req.Portfolio.Positions["MSFT"])
	assert.Equal(t, 0.5, req.Portfolio.MarginRequirement)
}

func TestParseHedgeFundRequest_Invalid(t *testing.T) {
	base := `"tickers":["MSFT"],"start_date":"2024-01-01","end_date":"2024-01-31"`
	tests := []struct {
		name  string
		body  string
		kind  contracts.ValidationKind
		field string
	}{
		{"missing end", `{"tickers":["MSFT"],"start_date":"2024-01-01"}`, contracts.MissingField, "end_date"},
		{"reasoning not bool", `{` + base + `,"show_reasoning":"yes"}`, contracts.InvalidType, "show_reasoning"},
		{"portfolio not object", `{` + base + `,"portfolio":[]}`, contracts.InvalidType, "portfolio"},
		{"negative cash", `{` + base + `,"portfolio":{"cash":-5}}`, contracts.InvalidValue, "portfolio.cash"},
		{"unknown position", `{` + base + `,"portfolio":{"positions":{"AAPL":1}}}`, contracts.InvalidValue, "portfolio.positions.AAPL"},
		{"fractional shares", `{` + base + `,"portfolio":{"positions":{"MSFT":1.5}}}`, contracts.InvalidValue, "portfolio.positions.MSFT"},
		{"huge long", `{` + base + `,"portfolio":{"positions":{"MSFT":1e30}}}`, contracts.InvalidValue, "portfolio.positions.MSFT"},
		{"huge short", `{` + base + `,"portfolio":{"positions":{"MSFT":-1e19}}}`, contracts.InvalidValue, "portfolio.positions.MSFT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHedgeFundRequest(decode(t, tt.body), defaults)
			requireValidation(t, err, tt.kind, tt.field)
		})
	}
}
