package upstream

import (
	"context"
	"fmt"
	"net/url"
	"time"

	kivik "github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
)

// Probe performs a narrow startup health check against a configured
// upstream CouchDB: confirming it is reachable and authenticated,
// without taking on kivik as the gateway's general-purpose CouchDB
// driver (document and view traffic goes through the resty Client and
// the declarative view translator instead).
type Probe struct {
	client *kivik.Client
}

// NewProbe connects to the given CouchDB URL, embedding basic-auth
// credentials in the connection URL when provided.
func NewProbe(couchURL, username, password string) (*Probe, error) {
	connectionURL, err := probeConnectionURL(couchURL, username, password)
	if err != nil {
		return nil, fmt.Errorf("building couchdb probe url: %w", err)
	}
	client, err := kivik.New("couch", connectionURL)
	if err != nil {
		return nil, fmt.Errorf("creating couchdb probe client: %w", err)
	}
	return &Probe{client: client}, nil
}

func probeConnectionURL(rawURL, username, password string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("couchdb url cannot be empty")
	}
	if username == "" && password == "" {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.User = url.UserPassword(username, password)
	return u.String(), nil
}

// Check confirms the upstream CouchDB is reachable by probing for the
// presence of the _users system database.
func (p *Probe) Check(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := p.client.DBExists(ctx, "_users")
	if err != nil {
		return fmt.Errorf("couchdb probe failed: %w", err)
	}
	return nil
}
