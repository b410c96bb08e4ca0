package deps

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxResourceSize bounds the bytes read for a single resource.
const MaxResourceSize = 32 << 20

// Fetcher retrieves the bytes of a resource.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, u *url.URL) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, u *url.URL) ([]byte, error) { return f(ctx, u) }

// HTTPFetcher fetches http and https resources.
type HTTPFetcher struct {
	Client *http.Client
}

func (f HTTPFetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, MaxResourceSize))
}

// FileFetcher reads file:// resources from the local filesystem.
type FileFetcher struct{}

func (FileFetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(u.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, MaxResourceSize))
}

// S3API is the subset of the S3 client used by S3Fetcher.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher reads s3://bucket/key resources.
type S3Fetcher struct {
	Client S3API
}

// NewAnonymousS3Fetcher returns an S3Fetcher for public buckets in region.
func NewAnonymousS3Fetcher(region string) S3Fetcher {
	client := s3.New(s3.Options{
		Region:      region,
		Credentials: aws.AnonymousCredentials{},
	})
	return S3Fetcher{Client: client}
}

func (f S3Fetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, fmt.Errorf("s3 url %q needs a bucket and key", u)
	}
	out, err := f.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(io.LimitReader(out.Body, MaxResourceSize))
}

// Mux dispatches to a Fetcher by URL scheme, resolving relative URLs
// against Base first.
type Mux struct {
	Base    *url.URL
	Schemes map[string]Fetcher
}

// NewMux returns a Mux serving http, https and file URLs.
func NewMux(base *url.URL) *Mux {
	web := HTTPFetcher{}
	return &Mux{
		Base: base,
		Schemes: map[string]Fetcher{
			"http":  web,
			"https": web,
			"file":  FileFetcher{},
		},
	}
}

// Handle registers f for scheme.
func (m *Mux) Handle(scheme string, f Fetcher) {
	if m.Schemes == nil {
		m.Schemes = make(map[string]Fetcher)
	}
	m.Schemes[scheme] = f
}

// Resolve returns the absolute URL of ref.
func (m *Mux) Resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() && m.Base != nil {
		u = m.Base.ResolveReference(u)
	}
	return u, nil
}

func (m *Mux) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	f, ok := m.Schemes[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return f.Fetch(ctx, u)
}
