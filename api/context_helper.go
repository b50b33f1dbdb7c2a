package api

import "context"

// Identity is the caller behind a request. An empty UserID means signed out.
type Identity struct {
	UserID string
	Token  string
}

// SignedIn reports whether the request carried a usable access token.
func (i Identity) SignedIn() bool { return i.UserID != "" }

type identityKey struct{}

type deviceKey struct{}

// WithIdentity attaches the caller's identity to ctx
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity attached by WithIdentity, or the signed-out identity.
func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// WithDevice attaches the caller's device id to ctx
func WithDevice(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceKey{}, deviceID)
}

// DeviceFrom returns the device id attached by WithDevice.
func DeviceFrom(ctx context.Context) string {
	d, _ := ctx.Value(deviceKey{}).(string)
	return d
}
