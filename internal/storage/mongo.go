package storage

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoOpTimeout = 10 * time.Second

// ConnectMongo dials and pings the cluster.
func ConnectMongo(ctx context.Context, mongoURI string) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(mongoURI)
	// Atlas occasionally fails TLS negotiation unless TLS 1.2 is forced.
	if strings.HasPrefix(mongoURI, "mongodb+srv://") {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS12,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, mongoOpTimeout)
}
