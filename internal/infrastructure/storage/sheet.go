package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/vitos/trade_calls/internal/domain"
)

// ObjectAPI is the subset of *s3.Client the sheet store uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	// Endpoint is set for S3-compatible providers (MinIO, R2). Empty means AWS.
	Endpoint       string
	Region         string
	Bucket         string
	Key            string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// NewS3Client builds an S3 client for cfg. Static credentials are used when
// an access key is given, otherwise the default AWS chain applies.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3: region is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if u, err := url.Parse(endpoint); err != nil || u.Scheme == "" {
			endpoint = "https://" + endpoint
		}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// SheetStore keeps the call sheet as a single CSV object, one row per call
// with a header line. Every Save rewrites the whole object.
type SheetStore struct {
	api    ObjectAPI
	bucket string
	key    string
	logger *zap.Logger
}

func NewSheetStore(api ObjectAPI, bucket, key string, logger *zap.Logger) *SheetStore {
	if key == "" {
		key = "calls.csv"
	}
	return &SheetStore{api: api, bucket: bucket, key: key, logger: logger}
}

// Load reads the sheet. A missing object is an empty sheet.
func (s *SheetStore) Load(ctx context.Context) ([]domain.Position, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isNotFound(err) {
			return []domain.Position{}, nil
		}
		return nil, fmt.Errorf("s3: get %s: %w", s.key, err)
	}
	defer out.Body.Close()

	return s.decode(out.Body)
}

func (s *SheetStore) decode(r io.Reader) ([]domain.Position, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return []domain.Position{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("s3: read sheet header: %w", err)
	}

	positions := []domain.Position{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("s3: read sheet: %w", err)
		}
		if isBlank(row) {
			continue
		}
		p, warnings := domain.PositionFromRow(header, row)
		for _, w := range warnings {
			s.logger.Warn("Malformed call row", zap.String("warning", w))
		}
		positions = append(positions, p)
	}
	return positions, nil
}

func (s *SheetStore) Save(ctx context.Context, positions []domain.Position) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(domain.SheetColumns); err != nil {
		return err
	}
	for i := range positions {
		if err := w.Write(positions[i].ToRow()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("s3: encode sheet: %w", err)
	}

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("s3: put %s: %w", s.key, err)
	}
	return nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	// S3-compatible providers may only surface the HTTP status.
	type httpResponseError interface {
		HTTPStatusCode() int
	}
	var httpErr httpResponseError
	return errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404
}

var _ domain.PositionRepository = (*SheetStore)(nil)
