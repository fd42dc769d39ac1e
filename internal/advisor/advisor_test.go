package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ppiankov/labkit/internal/llm"
	"github.com/ppiankov/labkit/internal/llm/llmtest"
	"github.com/ppiankov/labkit/internal/model"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWeather struct {
	report    *model.WeatherReport
	err       error
	locations []string
}

func (s *stubWeather) Current(_ context.Context, location string) (*model.WeatherReport, error) {
	s.locations = append(s.locations, location)
	return s.report, s.err
}

var sunny = &model.WeatherReport{Location: "London", Temperature: 26.85, Description: "clear sky", MainWeather: "Clear"}

func toolCall(args string) *llm.ChatResponse {
	return &llm.ChatResponse{ToolCalls: []model.ToolCall{{ID: "call_1", Name: ToolName, Arguments: args}}}
}

func TestSuggest_ToolFlow(t *testing.T) {
	fake := &llmtest.Fake{Responses: []*llm.ChatResponse{toolCall(`{"location":"London, England"}`)}}
	fake.Reply("Wear shorts. Great picnic day.")
	w := &stubWeather{report: sunny}

	advice, err := New(fake, w, "gpt-3.5-turbo", "", nil).Suggest(context.Background(), "London, England")
	require.NoError(t, err)

	assert.Equal(t, "Wear shorts. Great picnic day.", advice.Text)
	assert.True(t, advice.ToolCalled)
	assert.Equal(t, sunny, advice.Report)
	assert.Equal(t, []string{"London, England"}, w.locations)
	require.Equal(t, 2, fake.Calls())

	first := fake.Request(0)
	require.Len(t, first.Tools, 1)
	assert.Equal(t, ToolName, first.Tools[0].Name)
	assert.Equal(t, "gpt-3.5-turbo", first.Model)
	assert.Equal(t, "What should I wear today in London, England? Also, is it a good day for a picnic?", first.Messages[1].Content)

	second := fake.Request(1)
	assert.Empty(t, second.Tools)
	require.Len(t, second.Messages, 4)
	assert.Equal(t, model.RoleAssistant, second.Messages[2].Role)
	assert.Len(t, second.Messages[2].ToolCalls, 1)

	toolMsg := second.Messages[3]
	assert.Equal(t, model.RoleTool, toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)

	var payload model.WeatherReport
	require.NoError(t, json.Unmarshal([]byte(toolMsg.Content), &payload))
	assert.Equal(t, 26.85, payload.Temperature)
}

func TestSuggest_NoToolCall(t *testing.T) {
	fake := (&llmtest.Fake{}).Reply("Bring a jacket.")
	w := &stubWeather{report: sunny}

	advice, err := New(fake, w, "m", "", nil).Suggest(context.Background(), "Paris")
	require.NoError(t, err)

	assert.Equal(t, "Bring a jacket.", advice.Text)
	assert.False(t, advice.ToolCalled)
	assert.Equal(t, 1, fake.Calls())
	assert.Empty(t, w.locations)
}

func TestSuggest_UnknownTool(t *testing.T) {
	fake := &llmtest.Fake{Responses: []*llm.ChatResponse{{
		Content:   "partial",
		ToolCalls: []model.ToolCall{{ID: "x", Name: "get_stock_price", Arguments: "{}"}},
	}}}

	advice, err := New(fake, &stubWeather{}, "m", "", nil).Suggest(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Equal(t, "partial", advice.Text)
	assert.Equal(t, 1, fake.Calls())
}

func TestSuggest_ToolLocationFallbacks(t *testing.T) {
	tests := []struct {
		name string
		args string
		want string
	}{
		{"missing uses requested", `{}`, "Tokyo, Japan"},
		{"empty uses default", `{"location":""}`, DefaultLocation},
		{"unreadable uses requested", `not json`, "Tokyo, Japan"},
		{"given", `{"location":"Osaka"}`, "Osaka"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &llmtest.Fake{Responses: []*llm.ChatResponse{toolCall(tt.args)}}
			fake.Reply("ok")
			w := &stubWeather{report: sunny}

			_, err := New(fake, w, "m", "", nil).Suggest(context.Background(), "Tokyo, Japan")
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, w.locations)
		})
	}
}

func TestSuggest_WeatherFailure(t *testing.T) {
	fake := &llmtest.Fake{Responses: []*llm.ChatResponse{toolCall(`{"location":"Nowhere"}`)}}
	fake.Reply("I couldn't get the weather, dress in layers.")
	w := &stubWeather{err: errors.New("city not found")}

	advice, err := New(fake, w, "m", "", nil).Suggest(context.Background(), "Nowhere")
	require.NoError(t, err)
	assert.Nil(t, advice.Report)
	assert.Equal(t, `{"error": "Could not retrieve weather data"}`, fake.Request(1).Messages[3].Content)
}

// cityWeather answers only for the cities it knows
type cityWeather map[string]*model.WeatherReport

func (c cityWeather) Current(_ context.Context, location string) (*model.WeatherReport, error) {
	if r, ok := c[location]; ok {
		return r, nil
	}
	return nil, errors.New("city not found")
}

func TestSuggest_FailedLookupKeepsEarlierReport(t *testing.T) {
	first := &llm.ChatResponse{ToolCalls: []model.ToolCall{
		{ID: "call_1", Name: ToolName, Arguments: `{"location":"London"}`},
		{ID: "call_2", Name: ToolName, Arguments: `{"location":"Nowhere"}`},
	}}
	fake := &llmtest.Fake{Responses: []*llm.ChatResponse{first}}
	fake.Reply("Wear shorts in London.")

	advice, err := New(fake, cityWeather{"London": sunny}, "m", "", nil).Suggest(context.Background(), "London")
	require.NoError(t, err)
	assert.True(t, advice.ToolCalled)
	assert.Equal(t, sunny, advice.Report)

	msgs := fake.Request(1).Messages
	require.Len(t, msgs, 5)
	assert.Equal(t, "call_2", msgs[4].ToolCallID)
	assert.Equal(t, `{"error": "Could not retrieve weather data"}`, msgs[4].Content)
}

func TestSuggest_Errors(t *testing.T) {
	a := New(&llmtest.Fake{}, &stubWeather{}, "m", "", nil)
	_, err := a.Suggest(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyLocation)

	failing := New(&llmtest.Fake{Err: errors.New("down")}, &stubWeather{}, "m", "", nil)
	_, err = failing.Suggest(context.Background(), "Paris")
	assert.Error(t, err)

	// second round failure
	fake := &llmtest.Fake{Responses: []*llm.ChatResponse{toolCall(`{"location":"Paris"}`)}}
	_, err = New(fake, &stubWeather{report: sunny}, "m", "", nil).Suggest(context.Background(), "Paris")
	assert.ErrorIs(t, err, llmtest.ErrNoResponse)
}

func TestTool_Schema(t *testing.T) {
	tool := Tool()
	assert.Equal(t, "get_weather_for_openai", tool.Name)
	assert.Equal(t, "Get current weather information for a specific location", tool.Description)

	def, ok := tool.Parameters.(jsonschema.Definition)
	require.True(t, ok)
	assert.Equal(t, jsonschema.Object, def.Type)
	assert.Equal(t, []string{"location"}, def.Required)
	assert.Equal(t, jsonschema.String, def.Properties["location"].Type)
}
