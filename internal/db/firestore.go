package db

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"tarot-oracle-backend/internal/config"
)

// Clients bundles the Firebase-backed handles the rest of the application
// depends on. It is initialized exactly once per process and injected into
// components; concurrent first-callers share the single initialization.
type Clients struct {
	Firestore *firestore.Client
	Auth      *auth.Client
}

var (
	initOnce    sync.Once
	initClients *Clients
	initErr     error
)

// InitClients initializes the Firebase Admin SDK and returns the Firestore
// and Auth clients. Safe for concurrent use; every caller after the first
// receives the memoized result (or the memoized initialization error).
func InitClients(ctx context.Context, appConfig *config.Config) (*Clients, error) {
	initOnce.Do(func() {
		initClients, initErr = newClients(ctx, appConfig)
	})
	return initClients, initErr
}

func newClients(ctx context.Context, appConfig *config.Config) (*Clients, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("newClients: appConfig cannot be nil")
	}

	var opts []option.ClientOption
	switch {
	case appConfig.GoogleApplicationCredentials != "":
		opts = append(opts, option.WithCredentialsFile(appConfig.GoogleApplicationCredentials))
	case appConfig.FirebaseServiceAccountJSONBase64 != "":
		decoded, err := base64.StdEncoding.DecodeString(appConfig.FirebaseServiceAccountJSONBase64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode FIREBASE_SERVICE_ACCOUNT_JSON_BASE64: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(decoded))
	default:
		// Fall back to Application Default Credentials (GCE, GKE, Cloud Run).
	}

	var fbConfig *firebase.Config
	if appConfig.FirebaseProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: appConfig.FirebaseProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}

	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("app.Firestore: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		fsClient.Close()
		return nil, fmt.Errorf("app.Auth: %w", err)
	}

	return &Clients{Firestore: fsClient, Auth: authClient}, nil
}
