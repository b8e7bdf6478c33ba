package log

import (
	"strconv"
	"time"
)

// Field is a single structured key/value attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

// F creates a field with an arbitrary value.
func F(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Str creates a string field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 creates an int64 field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Uint64 creates a uint64 field.
func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }

// Bool creates a bool field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Float64 creates a float64 field.
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

// Duration creates a duration field rendered with time.Duration.String.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Any is an alias of F kept for call sites that read better with it.
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Err creates an "error" field. A nil error yields a nil value.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Component tags the line with the emitting component.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }

// secret is a value printed as its length unless the logger reveals secrets.
type secret string

func (s secret) masked() string { return "<" + strconv.Itoa(len(s)) + " bytes>" }

// Secret creates a field whose value is masked by default. Candidate
// passphrases and the patterns they come from are logged this way.
func Secret(key, value string) Field { return Field{Key: key, Value: secret(value)} }
