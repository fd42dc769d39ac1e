// Package advisor suggests clothing for the current weather through a
// model tool call.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/labkit/internal/llm"
	"github.com/ppiankov/labkit/internal/logging"
	"github.com/ppiankov/labkit/internal/model"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	// ToolName is the function the model may call
	ToolName = "get_weather_for_openai"

	// DefaultLocation is used when the model calls the tool without a location
	DefaultLocation = "Syracuse, NY"

	// FallbackMessage is shown when the flow fails
	FallbackMessage = "Sorry, I couldn't process your request. Please try again."

	toolFailure = `{"error": "Could not retrieve weather data"}`

	systemPrompt = `You are a helpful weather and clothing advisor. When asked about clothing suggestions 
            for a location, first get the current weather information, then provide detailed clothing recommendations 
            and advice about whether it's a good day for a picnic. Be specific about clothing items and explain 
            your reasoning based on the weather conditions.`
)

// ErrEmptyLocation is returned when no location is given
var ErrEmptyLocation = errors.New("please enter a city name")

// WeatherSource looks up current conditions
type WeatherSource interface {
	Current(ctx context.Context, location string) (*model.WeatherReport, error)
}

// Advice is the outcome of one suggestion
type Advice struct {
	Location string
	Text     string

	// ToolCalled reports whether the model asked for the weather
	ToolCalled bool

	// Report is the weather handed to the model (nil when not fetched or failed)
	Report *model.WeatherReport
}

// Advisor runs the two-round tool-call flow
type Advisor struct {
	client          llm.Client
	weather         WeatherSource
	model           string
	defaultLocation string
	log             logging.Logger
}

// New creates an advisor answering with modelName
func New(client llm.Client, weather WeatherSource, modelName, defaultLocation string, log logging.Logger) *Advisor {
	if defaultLocation == "" {
		defaultLocation = DefaultLocation
	}
	return &Advisor{
		client:          client,
		weather:         weather,
		model:           modelName,
		defaultLocation: defaultLocation,
		log:             logging.OrNoOp(log),
	}
}

// Tool describes the weather lookup offered to the model
func Tool() model.Tool {
	return model.Tool{
		Name:        ToolName,
		Description: "Get current weather information for a specific location",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"location": {
					Type:        jsonschema.String,
					Description: "City name (e.g., 'Syracuse, NY' or 'London, England')",
				},
			},
			Required: []string{"location"},
		},
	}
}

// UserPrompt is the question asked for location
func UserPrompt(location string) string {
	return fmt.Sprintf("What should I wear today in %s? Also, is it a good day for a picnic?", location)
}

// Suggest asks for clothing and picnic advice. When the model calls the
// weather tool, a second completion receives the tool result; otherwise
// the first answer is returned as is.
func (a *Advisor) Suggest(ctx context.Context, location string) (*Advice, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, ErrEmptyLocation
	}

	messages := []model.Message{
		{Role: model.RoleSystem, Content: systemPrompt},
		{Role: model.RoleUser, Content: UserPrompt(location)},
	}

	first, err := a.client.Complete(ctx, llm.ChatRequest{
		Model:    a.model,
		Messages: messages,
		Tools:    []model.Tool{Tool()},
	})
	if err != nil {
		return nil, fmt.Errorf("advisor first round: %w", err)
	}

	advice := &Advice{Location: location, Text: first.Content}
	if !hasTool(first.ToolCalls) {
		if len(first.ToolCalls) > 0 {
			a.log.Warn("model called unknown tool %q, using its first answer", first.ToolCalls[0].Name)
		} else {
			a.log.Debug("model answered without calling %s", ToolName)
		}
		return advice, nil
	}

	advice.ToolCalled = true
	messages = append(messages, first.Message())
	for _, call := range first.ToolCalls {
		content := `{"error": "unknown tool"}`
		if call.Name == ToolName {
			var report *model.WeatherReport
			content, report = a.runTool(ctx, call, location)
			// keep the last successful lookup
			if report != nil {
				advice.Report = report
			}
		}
		messages = append(messages, model.Message{
			Role:       model.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
		})
	}

	final, err := a.client.Complete(ctx, llm.ChatRequest{
		Model:    a.model,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("advisor second round: %w", err)
	}

	advice.Text = final.Content
	return advice, nil
}

func hasTool(calls []model.ToolCall) bool {
	for _, c := range calls {
		if c.Name == ToolName {
			return true
		}
	}
	return false
}

// runTool executes one weather call and returns its JSON result
func (a *Advisor) runTool(ctx context.Context, call model.ToolCall, requested string) (string, *model.WeatherReport) {
	loc := a.toolLocation(call.Arguments, requested)
	a.log.Info("model requested weather for %q", loc)

	report, err := a.weather.Current(ctx, loc)
	if err != nil {
		a.log.Warn("weather lookup for %q failed: %v", loc, err)
		return toolFailure, nil
	}

	data, err := json.Marshal(report)
	if err != nil {
		return toolFailure, nil
	}
	return string(data), report
}

// toolLocation reads the location argument. An absent argument (or
// unreadable arguments) means the location the user asked about; an empty
// one means the default.
func (a *Advisor) toolLocation(arguments, requested string) string {
	var args map[string]any
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		a.log.Warn("unreadable tool arguments %q: %v", arguments, err)
		return requested
	}

	v, ok := args["location"]
	if !ok {
		return requested
	}
	loc, _ := v.(string)
	if strings.TrimSpace(loc) == "" {
		return a.defaultLocation
	}
	return loc
}
