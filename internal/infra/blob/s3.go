package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/tutorhub/tutorhub/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

// S3Deps bundles the S3 client, uploader and presigner for one bucket.
type S3Deps struct {
	Client   *s3.Client
	Presign  *s3.PresignClient
	Uploader *manager.Uploader
	Bucket   string
}

// UploadMeta describes one stored object.
type UploadMeta struct {
	Bucket string
	Key    string
	ETag   string
	SHA256 string
	MIME   string
	SizeB  int64
}

func NewS3(ctx context.Context, cfg *config.Config) (*S3Deps, error) {
	opts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.S3.Region),
	}
	if cfg.S3.AccessKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		}
		o.UsePathStyle = cfg.S3.UsePathStyle
	})

	return &S3Deps{
		Client:   client,
		Presign:  s3.NewPresignClient(client),
		Uploader: manager.NewUploader(client),
		Bucket:   cfg.S3.Bucket,
	}, nil
}

// UploadFormFile stores one multipart upload under keyPrefix and returns its metadata.
// The content type is sniffed from the bytes, not trusted from the client.
func (d *S3Deps) UploadFormFile(ctx context.Context, keyPrefix string, fh *multipart.FileHeader) (*UploadMeta, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	mime := mimetype.Detect(data)
	sum := sha256.Sum256(data)
	key := fmt.Sprintf("%s/%s-%s", keyPrefix, uuid.New().String(), fh.Filename)

	out, err := d.Uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mime.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("upload to s3: %w", err)
	}

	etag := ""
	if out.ETag != nil {
		etag = *out.ETag
	}

	return &UploadMeta{
		Bucket: d.Bucket,
		Key:    key,
		ETag:   etag,
		SHA256: hex.EncodeToString(sum[:]),
		MIME:   mime.String(),
		SizeB:  int64(len(data)),
	}, nil
}

// PresignGet returns a time-limited download URL for a stored object.
func (d *S3Deps) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := d.Presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

func (d *S3Deps) DeleteObject(ctx context.Context, key string) error {
	_, err := d.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.Bucket),
		Key:    aws.String(key),
	})
	return err
}
