// Package google builds the authenticated HTTP client and client options
// shared by the Drive and Calendar adapters.
package google

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// Scopes requested for the service account.
var Scopes = []string{
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/calendar",
}

// NewServiceAccountClient returns an HTTP client that signs requests with the
// service account key stored at credentialsFile.
func NewServiceAccountClient(ctx context.Context, credentialsFile string) (*http.Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("google: read credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("google: parse credentials: %w", err)
	}
	return conf.Client(ctx), nil
}

// ClientOptions routes a generated API client through httpClient. An empty
// endpoint keeps the public one.
func ClientOptions(httpClient *http.Client, endpoint string) []option.ClientOption {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts
}
