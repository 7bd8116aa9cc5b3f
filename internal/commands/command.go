package commands

import (
	"fmt"
	"strings"

	"github.com/sandeepkv93/medremind/internal/model"
)

type Type string

const (
	TypeAdd    Type = "add"
	TypeTake   Type = "take"
	TypeLater  Type = "later"
	TypeRemove Type = "remove"
	TypeTest   Type = "test"
	TypeCheck  Type = "check"
	TypePing   Type = "ping"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type AddArgs struct {
	Name  string
	Time  string
	Daily bool
}

// TargetArgs names a medicine by id or notification tag. Take and later
// fall back to the alert on screen when Target is empty.
type TargetArgs struct {
	Target string
}

type Command struct {
	Type   Type
	Raw    string
	Add    *AddArgs
	Target *TargetArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeAdd:
		return parseAdd(input, args)
	case TypeTake, TypeLater:
		return parseTarget(input, Type(head), args, false)
	case TypeRemove, TypeTest:
		return parseTarget(input, Type(head), args, true)
	case TypeCheck, TypePing:
		if len(args) > 0 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s takes no arguments", head)}
		}
		return Command{Type: Type(head), Raw: input}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

// parseAdd reads "add <name...> <HH:MM> [daily]".
func parseAdd(raw string, args []string) (Command, error) {
	daily := false
	if n := len(args); n > 0 && strings.EqualFold(args[n-1], "daily") {
		daily = true
		args = args[:n-1]
	}
	if len(args) < 2 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "add requires a name and a time (HH:MM)"}
	}
	clock := args[len(args)-1]
	tod, err := model.ParseTimeOfDay(clock)
	if err != nil {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("add: %q is not a time of day", clock)}
	}
	name := strings.TrimSpace(strings.Join(args[:len(args)-1], " "))
	return Command{Type: TypeAdd, Raw: raw, Add: &AddArgs{Name: name, Time: tod.String(), Daily: daily}}, nil
}

func parseTarget(raw string, t Type, args []string, required bool) (Command, error) {
	if len(args) > 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s takes at most one medicine id", t)}
	}
	target := ""
	if len(args) == 1 {
		target = args[0]
	}
	if required && target == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s requires a medicine id", t)}
	}
	return Command{Type: t, Raw: raw, Target: &TargetArgs{Target: target}}, nil
}
