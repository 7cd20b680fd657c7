package listenbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// AuthService checks user tokens.
//
// ListenBrainz has no session handshake: a user token copied from the
// profile page is attached to every request as-is.
type AuthService struct {
	client *Client
}

// ValidateToken asks ListenBrainz whether the configured token is valid.
//
// An invalid token is not an error: the returned TokenValidation has
// Valid=false and the server's message.
func (s *AuthService) ValidateToken(ctx context.Context) (*TokenValidation, error) {
	if s.client.token == "" {
		return nil, ErrNoToken
	}

	data, err := s.client.call(ctx, http.MethodGet, "/1/validate-token", nil, true)
	if err != nil {
		return nil, err
	}

	var v TokenValidation
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("listenbrainz: failed to parse token validation: %w", err)
	}

	return &v, nil
}
