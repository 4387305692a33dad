package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Options configures an S3 or S3-compatible bucket.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
	PublicURL       string
}

// S3Store keeps the catalog in an S3 bucket.
type S3Store struct {
	svc      *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	baseURL  string
}

// NewS3Store creates an S3 client for the bucket. It does not contact the
// bucket; call EnsureBucket for that.
func NewS3Store(opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("missing bucket")
	}
	if opts.Region == "" {
		return nil, errors.New("missing region")
	}

	cfg := &aws.Config{
		Region:           aws.String(opts.Region),
		S3ForcePathStyle: aws.Bool(opts.ForcePathStyle),
		Credentials:      credentials.NewStaticCredentials(opts.AccessKeyID, opts.SecretAccessKey, ""),
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}
	svc := s3.New(sess)

	return &S3Store{
		svc:      svc,
		uploader: s3manager.NewUploaderWithClient(svc),
		bucket:   opts.Bucket,
		baseURL:  publicBaseURL(opts),
	}, nil
}

// publicBaseURL is the URL prefix objects are reachable under.
func publicBaseURL(opts S3Options) string {
	if opts.PublicURL != "" {
		return strings.TrimRight(opts.PublicURL, "/")
	}
	if opts.Endpoint != "" {
		return strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
}

// EnsureBucket checks that the bucket exists and creates it when missing.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	_, err := s.svc.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var aerr awserr.Error
	if !errors.As(err, &aerr) || (aerr.Code() != s3.ErrCodeNoSuchBucket && aerr.Code() != "NotFound") {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}

	_, err = s.svc.CreateBucketWithContext(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		// Another instance may have created it first.
		if errors.As(err, &aerr) {
			switch aerr.Code() {
			case s3.ErrCodeBucketAlreadyExists, s3.ErrCodeBucketAlreadyOwnedByYou, "OperationAborted":
				return nil
			}
		}
		return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	return nil
}

// List returns the first page of objects under the query's key prefix, in
// key order.
func (s *S3Store) List(ctx context.Context, q ListQuery) ([]MediaResource, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix(q.Type, q.Prefix)),
	}
	if q.MaxResults > 0 {
		input.MaxKeys = aws.Int64(int64(q.MaxResults))
	}

	out, err := s.svc.ListObjectsV2WithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("listing bucket %s: %w", s.bucket, err)
	}

	resources := make([]MediaResource, 0, len(out.Contents))
	for _, obj := range out.Contents {
		key := aws.StringValue(obj.Key)
		res, ok := resourceFromKey(key)
		if !ok {
			continue
		}
		res.Bytes = aws.Int64Value(obj.Size)
		res.CreatedAt = aws.TimeValue(obj.LastModified).UTC()
		resources = append(resources, withURLs(res, s.baseURL, key))
	}
	return resources, nil
}

// Put uploads the object. Dimensions travel as object metadata.
func (s *S3Store) Put(ctx context.Context, obj Object) (*MediaResource, error) {
	key := objectKey(DeliveryTypeUpload, obj.PublicID, obj.Format)
	res, ok := resourceFromKey(key)
	if !ok {
		return nil, fmt.Errorf("invalid key %q", key)
	}

	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(obj.Body),
		ContentType: aws.String(obj.ContentType),
		Metadata: map[string]*string{
			"Width":  aws.String(strconv.Itoa(obj.Width)),
			"Height": aws.String(strconv.Itoa(obj.Height)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", key, err)
	}

	res.Bytes = int64(len(obj.Body))
	res.Width = obj.Width
	res.Height = obj.Height
	res.CreatedAt = time.Now().UTC()
	res = withURLs(res, s.baseURL, key)
	return &res, nil
}
