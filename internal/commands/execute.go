package commands

import "fmt"

type Result struct {
	Message string
}

type Handlers struct {
	Add    func(AddArgs) (Result, error)
	Take   func(TargetArgs) (Result, error)
	Later  func(TargetArgs) (Result, error)
	Remove func(TargetArgs) (Result, error)
	Test   func(TargetArgs) (Result, error)
	Check  func() (Result, error)
	Ping   func() (Result, error)
}

func Execute(cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeAdd:
		if handlers.Add == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Add(*cmd.Add)
	case TypeTake:
		if handlers.Take == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Take(*cmd.Target)
	case TypeLater:
		if handlers.Later == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Later(*cmd.Target)
	case TypeRemove:
		if handlers.Remove == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Remove(*cmd.Target)
	case TypeTest:
		if handlers.Test == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Test(*cmd.Target)
	case TypeCheck:
		if handlers.Check == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Check()
	case TypePing:
		if handlers.Ping == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Ping()
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}

func missing(t Type) error {
	return &CommandError{Code: ErrCodeHandlerMissing, Message: fmt.Sprintf("%s handler not configured", t)}
}
