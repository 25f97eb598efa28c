package snapshot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	errEmptyValue     = errors.New("snapshot: empty value")
	errBadTimestamp   = errors.New("snapshot: invalid timestamp")
	errNegativeMillis = errors.New("snapshot: negative timestamp")
)

// EncodeURLs serializes urls as a JSON array. A nil list encodes as "[]".
func EncodeURLs(urls []string) (string, error) {
	if urls == nil {
		urls = []string{}
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return "", fmt.Errorf("snapshot: encode urls: %w", err)
	}
	return string(data), nil
}

// DecodeURLs parses a JSON array of strings written by EncodeURLs.
func DecodeURLs(value string) ([]string, error) {
	if strings.TrimSpace(value) == "" {
		return nil, errEmptyValue
	}
	var urls []string
	if err := json.UnmarshalFromString(value, &urls); err != nil {
		return nil, fmt.Errorf("snapshot: decode urls: %w", err)
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}

// EncodeTimestamp renders t as decimal epoch milliseconds.
func EncodeTimestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// DecodeTimestamp parses decimal epoch milliseconds.
func DecodeTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errEmptyValue
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", errBadTimestamp, value)
	}
	if ms < 0 {
		return time.Time{}, errNegativeMillis
	}
	return time.UnixMilli(ms).UTC(), nil
}
