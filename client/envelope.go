package client

// Sentinel envelope codes for failures without an HTTP status.
const (
	CodeNetwork    = -1
	CodeTimeout    = -2
	CodeValidation = -3
	CodeFormatting = -4
	CodeUnexpected = -5
)

// Envelope is the uniform result of every call. It is never mutated after it
// is returned.
type Envelope struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// OK reports whether the call succeeded.
func (e *Envelope) OK() bool { return e != nil && e.Result }

func failure(code int, message string) *Envelope {
	return &Envelope{Result: false, Code: code, Message: message}
}
