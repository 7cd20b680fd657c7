// Package listenbrainz provides a client library for the ListenBrainz API.
//
// # Overview
//
// This package implements the parts of the ListenBrainz HTTP API a
// scrobbler needs: submitting listens, announcing the track that is playing
// now, and checking a user token. It provides a small, type-safe API with
// context support and structured errors.
//
// # Quick Start
//
// Create a client with the user token from the ListenBrainz profile page:
//
//	import "github.com/jfmyers9/lbscrobble/pkg/listenbrainz"
//
//	client, err := listenbrainz.NewClient(listenbrainz.Config{
//	    Token: "your-user-token",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// A self-hosted server is selected with Config.BaseURL.
//
// # Authentication
//
// There is no handshake. The token is sent as "Authorization: Token <token>"
// on every request. ValidateToken checks it before it is stored:
//
//	v, err := client.Auth().ValidateToken(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !v.Valid {
//	    log.Fatalf("token rejected: %s", v.Message)
//	}
//
// # Submitting
//
// Announce a track when it starts, then submit a listen once it has been
// listened to long enough:
//
//	md := listenbrainz.TrackMetadata{
//	    ArtistName:  "Radiohead",
//	    TrackName:   "Reckoner",
//	    ReleaseName: "In Rainbows",
//	}
//	_ = client.Listens().SubmitPlayingNow(ctx, listenbrainz.Listen{TrackMetadata: md})
//
//	err = client.Listens().SubmitListen(ctx, listenbrainz.Listen{
//	    ListenedAt:    started.Unix(),
//	    TrackMetadata: md,
//	})
//
// # Errors
//
// Non-2xx responses are returned as *Error carrying the HTTP status and the
// server message:
//
//	var apiErr *listenbrainz.Error
//	if errors.As(err, &apiErr) && apiErr.Unauthorized() {
//	    // ask the user for a new token
//	}
//
// Requests are never retried by this package. Error.Temporary reports
// whether the server signalled a transient condition.
//
// # ISRC codes
//
// ExtractISRC normalizes the ISRC values players report, which sometimes
// carry extra characters around the code.
package listenbrainz
