// Package creds resolves the access keys that requests are signed with.
package creds

import (
	"errors"
	"os"
)

// ErrNoCredentials is returned when a provider has no credentials to give.
// A Chain treats it as a signal to try the next provider.
var ErrNoCredentials = errors.New("no credentials available")

// Value is one resolved set of credentials.
type Value struct {
	AccessKeyID     string
	SecretAccessKey string

	// SessionToken is set for temporary credentials and travels in the
	// x-amz-security-token header.
	SessionToken string
}

// Valid reports whether the value can sign a request.
func (v Value) Valid() bool {
	return v.AccessKeyID != "" && v.SecretAccessKey != ""
}

type Provider interface {
	// Retrieve returns credentials to sign the next request with.
	// It should return ErrNoCredentials if the provider has none.
	Retrieve() (Value, error)
}

// Static implements Provider for a fixed set of credentials.
type Static struct {
	Value
}

func NewStatic(accessKeyID, secretAccessKey, sessionToken string) Static {
	return Static{
		Value: Value{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
			SessionToken:    sessionToken,
		},
	}
}

func (s Static) Retrieve() (Value, error) {
	if !s.Valid() {
		return Value{}, ErrNoCredentials
	}

	return s.Value, nil
}

// Env implements Provider from the standard AWS environment variables.
type Env struct{}

func (Env) Retrieve() (Value, error) {
	value := Value{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
	}
	if !value.Valid() {
		return Value{}, ErrNoCredentials
	}

	return value, nil
}

// Chain implements Provider by trying each provider in order from first to
// last. Providers that return ErrNoCredentials are skipped, any other failure
// stops the chain. If no provider has credentials then ErrNoCredentials is
// returned.
type Chain []Provider

func (c Chain) Retrieve() (Value, error) {
	for _, provider := range c {
		value, err := provider.Retrieve()
		if err == nil {
			return value, nil
		}
		if errors.Is(err, ErrNoCredentials) {
			continue
		}
		return Value{}, err
	}

	return Value{}, ErrNoCredentials
}
