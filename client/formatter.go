package client

import "context"

// Outcome is the terminal state of one call, handed to the Formatter.
type Outcome struct {
	Descriptor Descriptor
	StatusCode int
	Data       any
	Cached     bool
	// Err is nil on success.
	Err *Error
}

// Formatter wraps an Outcome into the envelope. It is the only way a call
// produces its result.
type Formatter interface {
	Format(ctx context.Context, o *Outcome) (*Envelope, error)
}

// FormatterFunc adapts a function to the Formatter interface.
type FormatterFunc func(ctx context.Context, o *Outcome) (*Envelope, error)

// Format calls f.
func (f FormatterFunc) Format(ctx context.Context, o *Outcome) (*Envelope, error) {
	return f(ctx, o)
}

// DefaultFormatter produces {result, code, message, data}: code mirrors the
// HTTP status when one exists and is a negative sentinel otherwise.
type DefaultFormatter struct{}

// Format builds the envelope.
func (DefaultFormatter) Format(_ context.Context, o *Outcome) (*Envelope, error) {
	if o.Err == nil {
		return &Envelope{Result: true, Code: o.StatusCode, Message: "Success", Data: o.Data}, nil
	}
	return failure(errorCode(o.Err), o.Err.Error()), nil
}

func errorCode(err *Error) int {
	switch err.Kind {
	case KindHTTP, KindParse:
		if err.StatusCode != 0 {
			return err.StatusCode
		}
		return CodeUnexpected
	case KindNetwork:
		return CodeNetwork
	case KindTimeout:
		return CodeTimeout
	case KindValidation:
		return CodeValidation
	default:
		return CodeUnexpected
	}
}
