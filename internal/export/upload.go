package export

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxLinkExpiry is the longest lifetime SigV4 allows for a presigned link.
const MaxLinkExpiry = 7 * 24 * time.Hour

// Uploader stores a rendered document and returns an http(s) link to it.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error)
}

// ObjectPresigner signs GET requests for stored objects. *s3.PresignClient implements it.
type ObjectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Uploader stores documents in an S3 bucket and links to them with presigned URLs.
type S3Uploader struct {
	bucket    string
	prefix    string
	expiry    time.Duration
	uploader  *manager.Uploader
	presigner ObjectPresigner
}

// NewS3Uploader loads the default AWS configuration for region. Links expire after linkExpiry.
func NewS3Uploader(ctx context.Context, bucket, region string, linkExpiry time.Duration) (*S3Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return NewS3UploaderWithClient(client, s3.NewPresignClient(client), bucket, "estimates/", linkExpiry)
}

// NewS3UploaderWithClient uses existing clients; keys are prefix+name.
func NewS3UploaderWithClient(client manager.UploadAPIClient, presigner ObjectPresigner, bucket, prefix string, linkExpiry time.Duration) (*S3Uploader, error) {
	if linkExpiry <= 0 || linkExpiry > MaxLinkExpiry {
		return nil, fmt.Errorf("document link expiry must be in (0, %s], got %s", MaxLinkExpiry, linkExpiry)
	}
	return &S3Uploader{
		bucket:    bucket,
		prefix:    prefix,
		expiry:    linkExpiry,
		uploader:  manager.NewUploader(client),
		presigner: presigner,
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	key := u.prefix + name
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload s3://%s/%s: %w", u.bucket, key, err)
	}

	req, err := u.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(u.expiry))
	if err != nil {
		return "", fmt.Errorf("presign s3://%s/%s: %w", u.bucket, key, err)
	}
	return req.URL, nil
}

// DirUploader writes documents to a local directory served under baseURL.
type DirUploader struct {
	dir     string
	baseURL string
}

// NewDirUploader returns a DirUploader rooted at dir, creating it if needed.
// baseURL is the public http(s) address the directory is served from.
func NewDirUploader(dir, baseURL string) (*DirUploader, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("documents base URL must be an absolute http(s) URL, got %q", baseURL)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}
	return &DirUploader{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Path returns the file backing the document name. Names may not leave the directory.
func (u *DirUploader) Path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	return filepath.Join(u.dir, name), nil
}

func (u *DirUploader) Upload(_ context.Context, name, _ string, body io.Reader) (string, error) {
	path, err := u.Path(name)
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return u.baseURL + "/" + url.PathEscape(name), nil
}
