package config

import (
	"bufio"
	"errors"
	"os"
	"strconv"
	"strings"
)

var (
	errNoEnvArg = errors.New("no env arg")
	ErrBadValue = errors.New("environment value is invalid")
)

// loadEnv reads nm from the environment; if unset, it looks for nm+"_FILE"
// and, if present, reads the first line of that file instead. This lets
// secrets (DATABASE_URL, REDIS_PASSWORD, ...) be injected via mounted files
// in container environments without landing in process environment dumps.
func loadEnv(nm string) (string, error) {
	if s, ok := os.LookupEnv(nm); ok {
		return s, nil
	}
	if fp, ok := os.LookupEnv(nm + "_FILE"); ok {
		return loadEnvFile(fp)
	}
	return "", errNoEnvArg
}

func loadEnvFile(nm string) (string, error) {
	fin, err := os.Open(nm)
	if err != nil {
		return "", err
	}
	defer fin.Close()
	s := bufio.NewScanner(fin)
	s.Scan()
	if err := s.Err(); err != nil {
		return "", err
	}
	r := s.Text()
	if r == "" {
		return "", errors.New("environment secret file is empty")
	}
	return r, nil
}

// String returns the value of envName, or defVal if unset.
func String(envName, defVal string) string {
	if s, err := loadEnv(envName); err == nil {
		return s
	}
	return defVal
}

// Int returns the integer value of envName, or defVal if unset or invalid.
func Int(envName string, defVal int) int {
	s, err := loadEnv(envName)
	if err != nil {
		return defVal
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defVal
	}
	return v
}

// Seconds returns envName parsed as a bare integer number of seconds, or
// defVal if unset or invalid; converting it to a time.Duration is left to
// the caller.
func Seconds(envName string, defVal int) int {
	return Int(envName, defVal)
}

// Bool returns the boolean value of envName, or defVal if unset or invalid.
func Bool(envName string, defVal bool) bool {
	s, err := loadEnv(envName)
	if err != nil {
		return defVal
	}
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return defVal
	}
	return v
}

// List returns envName split on commas, with surrounding whitespace trimmed
// from each element and empty elements dropped; nil if unset.
func List(envName string) []string {
	s, err := loadEnv(envName)
	if err != nil || s == "" {
		return nil
	}
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
