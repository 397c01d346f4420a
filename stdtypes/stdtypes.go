// Package stdtypes registers wire conversions for common standard-library
// and ecosystem types: time.Time, time.Duration, uuid.UUID, url.URL and
// net.IP all travel as strings. Importing the package for side effects is
// enough:
//
//	import _ "github.com/reoring/typeconv/stdtypes"
package stdtypes

import (
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reoring/typeconv"
)

var once sync.Once

func init() { Register() }

// Register installs the conversions. Safe to call more than once.
func Register() {
	once.Do(func() {
		typeconv.AddDeserializer(parseTime)
		typeconv.AddSerializer(formatTime)
		typeconv.AddDeserializer(parseDuration)
		typeconv.AddSerializer(formatDuration)
		typeconv.AddDeserializer(parseUUID)
		typeconv.AddSerializer(formatUUID)
		typeconv.AddDeserializer(parseURL)
		typeconv.AddSerializer(formatURL)
		typeconv.AddDeserializer(parseIP)
		typeconv.AddSerializer(formatIP)
	})
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, typeconv.NewValidationError("not a valid RFC 3339 timestamp")
	}
	return t, nil
}

func formatTime(t time.Time) (string, error) {
	return t.Format(time.RFC3339Nano), nil
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, typeconv.NewValidationError("not a valid duration")
	}
	return d, nil
}

func formatDuration(d time.Duration) (string, error) {
	return d.String(), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, typeconv.NewValidationError("not a valid UUID")
	}
	return id, nil
}

func formatUUID(id uuid.UUID) (string, error) {
	return id.String(), nil
}

func parseURL(s string) (url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return url.URL{}, typeconv.NewValidationError("not a valid URL")
	}
	return *u, nil
}

func formatURL(u url.URL) (string, error) {
	return u.String(), nil
}

func parseIP(s string) (net.IP, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, typeconv.NewValidationError("not a valid IP address")
	}
	return ip, nil
}

func formatIP(ip net.IP) (string, error) {
	return ip.String(), nil
}
