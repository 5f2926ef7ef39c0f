package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Env interface {
	uint | bool | string | time.Duration
}

// GetEnv reads key from the environment, falling back to defaultVal. Values
// that do not parse as T panic, as does a missing required key.
// Durations accept either a Go duration string ("1500ms") or whole seconds.
func GetEnv[T Env](key string, defaultVal string, required bool) T {
	var retVal T

	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		if required {
			panic(fmt.Sprintf("env %s is required", key))
		}

		val = defaultVal
	}

	switch ptr := any(&retVal).(type) {
	case *uint:
		parsedVal, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			panic(fmt.Sprintf("error: parsing env %s=%s", key, val))
		}

		*ptr = uint(parsedVal)
	case *bool:
		parsedVal, err := strconv.ParseBool(val)
		if err != nil {
			panic(fmt.Sprintf("error: parsing env %s=%s", key, val))
		}

		*ptr = parsedVal
	case *time.Duration:
		if secs, err := strconv.ParseUint(val, 10, 32); err == nil {
			*ptr = time.Duration(secs) * time.Second

			break
		}

		parsedVal, err := time.ParseDuration(val)
		if err != nil {
			panic(fmt.Sprintf("error: parsing env %s=%s", key, val))
		}

		*ptr = parsedVal
	case *string:
		*ptr = val
	}

	return retVal
}
