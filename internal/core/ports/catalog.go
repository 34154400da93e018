package ports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// Sentinel errors for the catalog error taxonomy. Match them with errors.Is.
var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrNoData                 = errors.New("no data")
	ErrDecoding               = errors.New("decoding error")
	ErrNetwork                = errors.New("network error")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrApplication            = errors.New("application error")
)

// ErrorKind classifies a CatalogError.
type ErrorKind int

const (
	KindInvalidRequest ErrorKind = iota + 1
	KindNoData
	KindDecoding
	KindNetwork
	KindAuthenticationRequired
	KindApplication
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindNoData:
		return ErrNoData
	case KindDecoding:
		return ErrDecoding
	case KindNetwork:
		return ErrNetwork
	case KindAuthenticationRequired:
		return ErrAuthenticationRequired
	case KindApplication:
		return ErrApplication
	default:
		return nil
	}
}

func (k ErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("error kind %d", int(k))
}

// CatalogError is the typed failure returned by the catalog client.
// Temporary is only ever set for network errors and marks them retryable.
type CatalogError struct {
	Kind      ErrorKind
	Status    int // HTTP status when one was received
	Message   string
	Temporary bool
	Err       error
}

func (e *CatalogError) Error() string {
	msg := e.Kind.String()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg = msg + ": " + e.Message
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

func (e *CatalogError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Retryable reports whether the retry policy may attempt the call again.
func (e *CatalogError) Retryable() bool {
	return e.Kind == KindNetwork && e.Temporary
}

// TokenSink receives fresh access tokens from whichever flow obtained them.
type TokenSink interface {
	SetAccessToken(token string, expiresIn time.Duration)
	Clear()
}

// CatalogClient is the track catalog the matching engine and the session
// layer talk to.
type CatalogClient interface {
	Authenticated() bool
	SearchTracks(ctx context.Context, query string, limit int) ([]domain.Track, error)
	AudioFeatures(ctx context.Context, ids []string) ([]domain.AudioFeatures, error)
	CurrentPlayback(ctx context.Context) (*domain.PlaybackState, error)
	Play(ctx context.Context, uri, deviceID string) error
	Pause(ctx context.Context, deviceID string) error
	Resume(ctx context.Context, deviceID string) error
	CurrentUser(ctx context.Context) (domain.UserProfile, error)
	Devices(ctx context.Context) ([]domain.Device, error)
}
