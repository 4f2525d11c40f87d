package oidcx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aussiebroadwan/splitbill/pkg/jwtx"
)

// maxDocumentSize caps discovery and key set responses.
const maxDocumentSize = 1 << 20

// Discovery is the subset of an OpenID Provider configuration document we
// rely on.
type Discovery struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

func (d Discovery) validate() error {
	if d.Issuer == "" {
		return fmt.Errorf("%w: missing issuer", ErrDiscovery)
	}
	if d.JWKSURI == "" {
		return fmt.Errorf("%w: missing jwks_uri", ErrDiscovery)
	}
	return nil
}

// FetchDiscovery retrieves and validates the configuration document at url.
func FetchDiscovery(ctx context.Context, client *http.Client, url string) (Discovery, error) {
	var d Discovery
	if err := getJSON(ctx, client, url, &d); err != nil {
		return Discovery{}, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	if err := d.validate(); err != nil {
		return Discovery{}, err
	}
	return d, nil
}

// FetchJWKS retrieves the provider's published key set.
func FetchJWKS(ctx context.Context, client *http.Client, url string) (jwtx.JWKS, error) {
	var set jwtx.JWKS
	if err := getJSON(ctx, client, url, &set); err != nil {
		return jwtx.JWKS{}, fmt.Errorf("%w: %w", ErrKeyFetch, err)
	}
	return set, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
