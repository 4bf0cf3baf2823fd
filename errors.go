package ddns

import "fmt"

// NetworkError is returned when the public IP could not be determined.
type NetworkError struct {
	Service string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("public ip lookup via %s failed: %s", e.Service, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError is returned when Cloudflare reports that a request failed.
// Msg is stable and safe to match on; Err carries the provider detail.
type APIError struct {
	Msg string
	Err error
}

func (e *APIError) Error() string { return e.Msg }

func (e *APIError) Unwrap() error { return e.Err }

// ConfigError reports missing or unusable configuration,
// including a cache file that was never provisioned.
type ConfigError struct {
	Msg  string
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s", e.Msg, e.Path, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Msg, e.Path)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ValidationError reports an invalid argument passed at construction time.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// RecordNotFoundError means the zone has no A record with the given name.
// The record has to be created out of band; this package never creates one.
type RecordNotFoundError struct {
	Name string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("no A record named %q; create it at the provider first", e.Name)
}
