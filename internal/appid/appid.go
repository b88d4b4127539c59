package appid

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"
)

// Default is the identity used when no `.fulmen/app.yaml` can be discovered,
// which is the normal case for an installed binary.
func Default() *appidentity.Identity {
	return &appidentity.Identity{
		Vendor:      "chwrapper",
		BinaryName:  "chwrapper",
		EnvPrefix:   "CHWRAPPER_",
		ConfigName:  "chwrapper",
		Description: "Companies House API client with rate-limit handling",
	}
}

// Get resolves the application identity.
//
// An explicit identity path (FULMEN_APP_IDENTITY_PATH) stays authoritative and
// its errors are returned as-is. Otherwise any discovery failure falls back to
// Default.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	identity, err := appidentity.Get(ctx)
	if err == nil && identity != nil {
		return identity, nil
	}
	if strings.TrimSpace(os.Getenv(appidentity.EnvIdentityPath)) != "" {
		if err == nil {
			err = errors.New("app identity is empty")
		}
		return nil, err
	}
	return Default(), nil
}
