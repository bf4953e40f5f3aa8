package assistant

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chronoflow/chronoflow/internal/llm"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

// Tool names.
const (
	ToolCreateItem   = "create_item"
	ToolUpdateItem   = "update_item"
	ToolDeleteItem   = "delete_item"
	ToolCompleteItem = "complete_item"
	ToolListItems    = "list_items"
	ToolFindFreeSlot = "find_free_slot"
)

// ErrUnknownTool is returned for tool names the assistant does not offer.
var ErrUnknownTool = errors.New("unknown tool")

// ToolCall is a decoded tool invocation. The concrete types are
// CreateItemCall, UpdateItemCall, DeleteItemCall, CompleteItemCall,
// ListItemsCall and FindFreeSlotCall.
type ToolCall interface {
	ToolName() string
}

// CreateItemCall adds an item to the schedule.
type CreateItemCall struct {
	Type        schedule.ItemType `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Date        string            `json:"date,omitempty"`
	StartTime   string            `json:"startTime,omitempty"`
	EndTime     string            `json:"endTime,omitempty"`
	Recurrence  string            `json:"recurrence,omitempty"`
}

// UpdateItemCall changes fields of an existing item.
type UpdateItemCall struct {
	ID string `json:"id"`
	schedule.Patch
}

// DeleteItemCall removes an item.
type DeleteItemCall struct {
	ID string `json:"id"`
}

// CompleteItemCall marks a task done or not done. Completed defaults to true.
type CompleteItemCall struct {
	ID        string `json:"id"`
	Completed *bool  `json:"completed,omitempty"`
}

// ListItemsCall reads the schedule between two dates, inclusive.
// An empty Start and End lists unscheduled tasks.
type ListItemsCall struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// FindFreeSlotCall searches working hours for a free range.
type FindFreeSlotCall struct {
	Date     string `json:"date,omitempty"`
	Duration int    `json:"duration"`
	Days     int    `json:"days,omitempty"`
}

func (CreateItemCall) ToolName() string   { return ToolCreateItem }
func (UpdateItemCall) ToolName() string   { return ToolUpdateItem }
func (DeleteItemCall) ToolName() string   { return ToolDeleteItem }
func (CompleteItemCall) ToolName() string { return ToolCompleteItem }
func (ListItemsCall) ToolName() string    { return ToolListItems }
func (FindFreeSlotCall) ToolName() string { return ToolFindFreeSlot }

// DecodeToolCall parses the model's JSON arguments for the named tool.
func DecodeToolCall(name, args string) (ToolCall, error) {
	if args == "" {
		args = "{}"
	}

	var (
		call ToolCall
		err  error
	)
	switch name {
	case ToolCreateItem:
		var c CreateItemCall
		err = json.Unmarshal([]byte(args), &c)
		if err == nil && c.Type == "" {
			c.Type = schedule.TypeTask
		}
		call = c
	case ToolUpdateItem:
		var c UpdateItemCall
		err = json.Unmarshal([]byte(args), &c)
		call = c
	case ToolDeleteItem:
		var c DeleteItemCall
		err = json.Unmarshal([]byte(args), &c)
		call = c
	case ToolCompleteItem:
		var c CompleteItemCall
		err = json.Unmarshal([]byte(args), &c)
		call = c
	case ToolListItems:
		var c ListItemsCall
		err = json.Unmarshal([]byte(args), &c)
		call = c
	case ToolFindFreeSlot:
		var c FindFreeSlotCall
		err = json.Unmarshal([]byte(args), &c)
		call = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s arguments: %w", name, err)
	}
	if err := validateCall(call); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return call, nil
}

func validateCall(call ToolCall) error {
	switch c := call.(type) {
	case UpdateItemCall:
		if c.ID == "" {
			return errors.New("id is required")
		}
		if c.Patch.Empty() {
			return errors.New("nothing to update")
		}
	case DeleteItemCall:
		if c.ID == "" {
			return errors.New("id is required")
		}
	case CompleteItemCall:
		if c.ID == "" {
			return errors.New("id is required")
		}
	case FindFreeSlotCall:
		if c.Duration <= 0 {
			return errors.New("duration must be positive")
		}
	}
	return nil
}

var (
	dateProp = map[string]any{"type": "string", "description": "Date as YYYY-MM-DD"}
	timeProp = map[string]any{"type": "string", "description": "24-hour time as HH:MM"}
	idProp   = map[string]any{"type": "string", "description": "Item id from list_items"}
	typeProp = map[string]any{"type": "string", "enum": []string{"event", "task"}}
)

func object(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Tools returns the definitions offered to the model.
func Tools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        ToolCreateItem,
			Description: "Add an event or task. Omit date and times for an unscheduled task. endTime earlier than startTime means it ends after midnight.",
			Parameters: object(map[string]any{
				"type":        typeProp,
				"title":       map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
				"date":        dateProp,
				"startTime":   timeProp,
				"endTime":     timeProp,
				"recurrence":  map[string]any{"type": "string", "description": "RRULE body for repeating events, e.g. FREQ=WEEKLY;BYDAY=MO"},
			}, "title"),
		},
		{
			Name:        ToolUpdateItem,
			Description: "Change fields of an existing item. Only the given fields change.",
			Parameters: object(map[string]any{
				"id":          idProp,
				"type":        typeProp,
				"title":       map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
				"date":        dateProp,
				"startTime":   timeProp,
				"endTime":     timeProp,
			}, "id"),
		},
		{
			Name:        ToolDeleteItem,
			Description: "Delete an item.",
			Parameters:  object(map[string]any{"id": idProp}, "id"),
		},
		{
			Name:        ToolCompleteItem,
			Description: "Mark a task as done, or not done with completed=false.",
			Parameters: object(map[string]any{
				"id":        idProp,
				"completed": map[string]any{"type": "boolean"},
			}, "id"),
		},
		{
			Name:        ToolListItems,
			Description: "List items between two dates inclusive. Without dates, list unscheduled tasks.",
			Parameters: object(map[string]any{
				"start": dateProp,
				"end":   dateProp,
			}),
		},
		{
			Name:        ToolFindFreeSlot,
			Description: "Find the earliest free range of the given minutes within working hours, starting at date (default today).",
			Parameters: object(map[string]any{
				"date":     dateProp,
				"duration": map[string]any{"type": "integer", "description": "Minutes"},
				"days":     map[string]any{"type": "integer", "description": "How many days to search, default 7"},
			}, "duration"),
		},
	}
}
