package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type ObjectStoreConfig struct {
	Endpoint  string `envconfig:"ENDPOINT" split_words:"true" required:"true"`
	Region    string `envconfig:"REGION" split_words:"true" default:"us-east-1"`
	AccessKey string `envconfig:"ACCESS_KEY" split_words:"true" required:"true"`
	SecretKey string `envconfig:"SECRET_KEY" split_words:"true" required:"true"`
	Bucket    string `envconfig:"BUCKET" split_words:"true" default:"synthesis-runs"`
	UseSSL    bool   `envconfig:"USE_SSL" split_words:"true" default:"true"`
	Prefix    string `envconfig:"PREFIX" split_words:"true" default:"runs"`
}

// ObjectRunStore archives run snapshots as JSON objects in an S3-compatible bucket.
type ObjectRunStore struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	initOnce sync.Once
	initErr  error
}

var _ RunStore = (*ObjectRunStore)(nil)

func NewObjectRunStore(cfg ObjectStoreConfig) (*ObjectRunStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("object store endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, errors.New("object store access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("object store bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}

	return &ObjectRunStore{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}, nil
}

func (s *ObjectRunStore) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *ObjectRunStore) Load(ctx context.Context, runID string) (*SynthesisState, error) {
	key, err := objectKey(s.prefix, runID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "NoSuchKey" || code == "NoSuchBucket" {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	var st SynthesisState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal synthesis state: %w", err)
	}
	return &st, nil
}

func (s *ObjectRunStore) Save(ctx context.Context, st *SynthesisState) error {
	if st == nil {
		return ErrNilRunState
	}
	key, err := objectKey(s.prefix, st.RunID)
	if err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal synthesis state: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (s *ObjectRunStore) Delete(ctx context.Context, runID string) error {
	key, err := objectKey(s.prefix, runID)
	if err != nil {
		return err
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func objectKey(prefix, runID string) (string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return "", ErrInvalidRun
	}
	if prefix == "" {
		return runID + ".json", nil
	}
	return prefix + "/" + runID + ".json", nil
}
