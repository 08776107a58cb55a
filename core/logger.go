package core

// Logger is any leveled logging service.
// Implementations may inspect trailing args for well-known types
// (e.g. errors or the acting user) and report them accordingly.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
