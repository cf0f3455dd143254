package tools

import "github.com/crystaldolphin/murmur/internal/schema"

// Built-in tool names.
const (
	WeatherTool  = "weather_tool"
	TimeTool     = "time_tool"
	CalendarTool = "calendar_tool"
	NoteTool     = "note_tool"
	CourseTool   = "course_creator"
)

// DefaultRules apply to every built-in tool and to plain conversation.
var DefaultRules = []string{
	"Never assume.",
	"Always give short answers.",
	"You are a voice assistant so your answers should be understood and simple.",
}

// BuiltinSchemas returns the schemas of the built-in tools in catalog order.
// calendar_tool has no handler; choosing it falls through to plain chat.
func BuiltinSchemas() []schema.ToolSchema {
	return []schema.ToolSchema{
		{
			Name:        WeatherTool,
			Description: "Provides current weather information for a given location. If there is secondary location mentioned, checks if chat history contains the information.",
			Arguments:   schema.Args("location"),
			Rules:       DefaultRules,
		},
		{
			Name:        TimeTool,
			Description: "Provides functionality to return date time information from tool args.",
			Arguments:   schema.Args("dateTime"),
			Rules:       DefaultRules,
		},
		{
			Name:        CalendarTool,
			Description: "Provides functionality to update the all calendar and time management related tasks.",
			Arguments:   schema.Args("action_type"),
			Rules:       DefaultRules,
		},
		{
			Name:        NoteTool,
			Description: "Tool to save or get note from the user. Only action types are 'save' or 'get'. Respond without quotes.",
			Arguments:   schema.Args("action_type", "title", "content"),
			Rules:       DefaultRules,
		},
		{
			Name:        CourseTool,
			Description: "Tool to create extended course based on given user input, topic, target audience and course format. Give your answers long, course should have extended information. No summary but actual long text.",
			Arguments:   schema.Args("input", "topic", "targetAudience", "courseFormat"),
			Rules:       []string{"Give long course modules, every page should contain as much as text to fill A4 paper."},
		},
	}
}

// BuiltinCatalog returns the catalog of built-in tools with DefaultRules.
func BuiltinCatalog() *Catalog {
	c, err := NewCatalog(DefaultRules, BuiltinSchemas()...)
	if err != nil {
		panic(err) // built-in schemas are static
	}
	return c
}

// DefaultFollowUpKeywords lists, per tool, words that mark an utterance as a
// continuation of that tool's last answer. Only the weather tool has a list.
func DefaultFollowUpKeywords() map[string][]string {
	return map[string][]string{
		WeatherTool: {
			"compare", "warmer", "colder", "rainy", "rain", "temperature", "condition",
			"forecast", "storm", "wind", "humidity", "sunny", "cloudy", "snow", "thunderstorm",
		},
	}
}
