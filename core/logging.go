package core

// Logger is implemented by the logging services (rollbar in production, a
// plain stdlib logger elsewhere).
// Error/Fatal accept extra args (errors, staff accounts, context maps) that
// implementations may report alongside the message.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
