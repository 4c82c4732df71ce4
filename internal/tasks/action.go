package tasks

import (
	"bytes"
	"context"
	"encoding/json"
)

// Action names the mutation requested on the endpoint.
type Action string

const (
	ActionAdd    Action = "add_task"
	ActionDelete Action = "delete_task"
	ActionToggle Action = "toggle_task"
)

// mutation is the closed set of requests the endpoint accepts. Each variant
// carries only the fields it needs.
type mutation interface {
	action() Action
	apply(ctx context.Context, svc *Service, ownerID int64) (actionResponse, error)
}

type addTask struct{ text string }

type deleteTask struct{ taskID string }

type toggleTask struct{ taskID, completed string }

func (addTask) action() Action    { return ActionAdd }
func (deleteTask) action() Action { return ActionDelete }
func (toggleTask) action() Action { return ActionToggle }

func (m addTask) apply(ctx context.Context, svc *Service, ownerID int64) (actionResponse, error) {
	id, err := svc.Add(ctx, ownerID, m.text)
	if err != nil {
		return actionResponse{}, err
	}
	return actionResponse{Success: true, Message: "Task added successfully!", TaskID: &id}, nil
}

func (m deleteTask) apply(ctx context.Context, svc *Service, ownerID int64) (actionResponse, error) {
	if err := svc.Delete(ctx, ownerID, m.taskID); err != nil {
		return actionResponse{}, err
	}
	return actionResponse{Success: true, Message: "Task deleted successfully!"}, nil
}

func (m toggleTask) apply(ctx context.Context, svc *Service, ownerID int64) (actionResponse, error) {
	if err := svc.Toggle(ctx, ownerID, m.taskID, m.completed); err != nil {
		return actionResponse{}, err
	}
	return actionResponse{Success: true, Message: "Task updated successfully!"}, nil
}

// mutationRequest is the raw body of a POST, from either form fields or JSON.
type mutationRequest struct {
	Action    string      `json:"action"`
	Task      looseString `json:"task"`
	TaskID    looseString `json:"task_id"`
	Completed looseString `json:"completed"`
}

func parseMutation(req mutationRequest) (mutation, error) {
	switch Action(req.Action) {
	case ActionAdd:
		return addTask{text: string(req.Task)}, nil
	case ActionDelete:
		return deleteTask{taskID: string(req.TaskID)}, nil
	case ActionToggle:
		return toggleTask{taskID: string(req.TaskID), completed: string(req.Completed)}, nil
	default:
		return nil, &Error{Kind: KindInvalidAction, Message: msgInvalidAction}
	}
}

// looseString accepts a JSON string, number, bool or null so JSON clients can
// send task_id and completed the same way a form would.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
	case bytes.Equal(b, []byte("true")):
		*s = "1"
	case bytes.Equal(b, []byte("false")):
		*s = "0"
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*s = looseString(n.String())
	}
	return nil
}
