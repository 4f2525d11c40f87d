/*
Package authsdk is the client side of the splitbill session protocol.

# Overview

The service hands out two tokens: a short-lived access token sent as a bearer
token on every protected call, and an opaque refresh token that can be
presented exactly once to obtain a new pair. SDKClient speaks the raw
endpoints; Manager keeps the pair in a Store and decides when to refresh.

	client := authsdk.NewSDKClient("https://auth.example.com")
	mgr := authsdk.NewManager(client, &authsdk.MemoryStore{})

	// assertion is an ID token from the external identity provider.
	if err := mgr.Login(ctx, assertion); errors.Is(err, authsdk.ErrLoginRejected) {
		// show the sign-in screen again
	}

# Protected Calls

Manager.Call runs a function with a current access token. If the function
reports ErrUnauthorized, the token is marked bad, the session is refreshed
once and the function is retried once. Only a second rejection ends the
session:

	err := mgr.Call(ctx, func(ctx context.Context, token string) error {
		return api.ListBills(ctx, token) // returns an error matching ErrUnauthorized on 401
	})
	if errors.Is(err, authsdk.ErrSessionRejected) {
		// please sign in again
	}

Manager.Do and Manager.DoJSON wrap Call for plain HTTP requests against the
same base URL.

# Concurrency

Refresh decisions are serialised by a mutex held across the network call.
Any number of goroutines may call GetOrRefreshAccess or Call at once; those
holding the same stale token trigger a single refresh and all receive the
new token.

# Errors

  - ErrSessionMissing: nothing stored, log in first
  - ErrSessionRejected: the server refused the session; it has been cleared
  - ErrLoginRejected: the identity assertion was refused
  - ErrNetwork: transport failure or timeout; the session is kept
  - *OAuth2Error: any other error response from the service

# Session Storage

MemoryStore keeps the session in process. RedisStore persists it in redis,
for clients that restart or share a session between workers.

Register OnSessionEnded callbacks to clear user state when a session ends
for any reason.
*/
package authsdk
