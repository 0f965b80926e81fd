// Package logger provides leveled, structured logging for the application.
// Fields are passed as alternating key-value pairs; output is either
// human-readable or JSON depending on LOG_FORMAT.
package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"
)

// Info logs informational messages
func Info(msg string, fields ...interface{}) {
	write("INFO", msg, fields...)
}

// Warn logs warning messages
func Warn(msg string, fields ...interface{}) {
	write("WARN", msg, fields...)
}

// Error logs error messages
func Error(msg string, fields ...interface{}) {
	write("ERROR", msg, fields...)
}

// Debug logs debug messages when LOG_LEVEL=debug
func Debug(msg string, fields ...interface{}) {
	if os.Getenv("LOG_LEVEL") != "debug" {
		return
	}
	write("DEBUG", msg, fields...)
}

// Infof logs a printf-formatted informational message
func Infof(format string, args ...interface{}) {
	log.Printf("INFO: "+format, args...)
}

// Warnf logs a printf-formatted warning message
func Warnf(format string, args ...interface{}) {
	log.Printf("WARN: "+format, args...)
}

// Errorf logs a printf-formatted error message
func Errorf(format string, args ...interface{}) {
	log.Printf("ERROR: "+format, args...)
}

func write(level, msg string, fields ...interface{}) {
	if os.Getenv("LOG_FORMAT") == "json" {
		entry := map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"level":     level,
			"message":   msg,
		}
		for i := 0; i+1 < len(fields); i += 2 {
			key, ok := fields[i].(string)
			if !ok {
				key = fmt.Sprintf("%v", fields[i])
			}
			entry[key] = fmt.Sprintf("%v", fields[i+1])
		}
		data, _ := json.Marshal(entry)
		log.Println(string(data))
		return
	}

	fieldStr := ""
	for i := 0; i+1 < len(fields); i += 2 {
		fieldStr += fmt.Sprintf(" %v=%v", fields[i], fields[i+1])
	}
	log.Printf("%s: %s%s", level, msg, fieldStr)
}
