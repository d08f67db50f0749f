package objectstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

type SafeSearchResult struct {
	Adult    string
	Violence string
	Racy     string
}

func isLikelyOrHigher(l string) bool {
	return l == "LIKELY" || l == "VERY_LIKELY"
}

func (r *SafeSearchResult) IsUnsafe() bool {
	return isLikelyOrHigher(r.Adult) || isLikelyOrHigher(r.Violence) || isLikelyOrHigher(r.Racy)
}

// SafeSearchModerator runs Vision SAFE_SEARCH_DETECTION on objects in a GCS bucket.
type SafeSearchModerator struct {
	svc   *vision.Service
	store *GCSStore
	log   *zap.Logger
}

func NewSafeSearchModerator(ctx context.Context, store *GCSStore, log *zap.Logger) (*SafeSearchModerator, error) {
	// Uses Application Default Credentials.
	svc, err := vision.NewService(ctx, option.WithScopes(vision.CloudPlatformScope))
	if err != nil {
		return nil, fmt.Errorf("moderation: vision client: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SafeSearchModerator{svc: svc, store: store, log: log}, nil
}

func (m *SafeSearchModerator) detect(ctx context.Context, gcsURI string) (*SafeSearchResult, error) {
	call := m.svc.Images.Annotate(&vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Source: &vision.ImageSource{GcsImageUri: gcsURI}},
			Features: []*vision.Feature{{Type: "SAFE_SEARCH_DETECTION"}},
		}},
	})
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Responses) == 0 || resp.Responses[0].SafeSearchAnnotation == nil {
		return &SafeSearchResult{}, nil
	}
	ss := resp.Responses[0].SafeSearchAnnotation
	return &SafeSearchResult{
		Adult:    ss.Adult,
		Violence: ss.Violence,
		Racy:     ss.Racy,
	}, nil
}

func (m *SafeSearchModerator) Allowed(ctx context.Context, key string) (bool, error) {
	uri := m.store.GSURI(key)
	ss, err := m.detect(ctx, uri)
	if err != nil {
		return false, fmt.Errorf("moderation: safesearch: %w", err)
	}
	m.log.Info("[Moderation] SafeSearch result",
		zap.String("object", uri),
		zap.String("adult", ss.Adult),
		zap.String("violence", ss.Violence),
		zap.String("racy", ss.Racy),
	)
	return !ss.IsUnsafe(), nil
}
