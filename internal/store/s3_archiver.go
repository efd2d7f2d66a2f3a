package store

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/canonical"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// Archiver uploads canonical decision-record JSON to object storage.
type Archiver interface {
	ArchiveRecord(ctx context.Context, rec *contracts.DecisionRecord) error
}

// S3Archiver writes canonicalized decision records to S3 paths like:
//
//	s3://<bucket>/<prefix>/records/YYYY/MM/DD/<recordID>.json
type S3Archiver struct {
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Archiver creates an S3Archiver. Region and credentials are resolved
// from the environment (AWS_REGION, AWS_PROFILE, AWS_ACCESS_KEY_ID etc.).
func NewS3Archiver(ctx context.Context, bucket string, prefix string) (*S3Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Archiver{
		bucket:   bucket,
		prefix:   prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

// recordEnvelope builds the archival envelope for a record.
func recordEnvelope(rec *contracts.DecisionRecord) map[string]interface{} {
	return map[string]interface{}{
		"recordId":           rec.RecordID,
		"agentId":            rec.AgentID,
		"agentVersion":       rec.AgentVersion,
		"decisionType":       string(rec.DecisionType),
		"inputHash":          rec.InputHash,
		"input":              rec.Input,
		"output":             rec.Output,
		"confidence":         rec.Confidence,
		"constraintsApplied": rec.ConstraintsApplied,
		"executionRef":       rec.ExecutionRef,
		"createdAt":          rec.CreatedAt.Format(time.RFC3339Nano),
	}
}

func (s *S3Archiver) objectKey(rec *contracts.DecisionRecord) string {
	ts := time.Now().UTC()
	if !rec.CreatedAt.IsZero() {
		ts = rec.CreatedAt
	}
	year, month, day := ts.Date()
	return path.Join(s.prefix, "records",
		fmt.Sprintf("%04d", year),
		fmt.Sprintf("%02d", int(month)),
		fmt.Sprintf("%02d", day),
		fmt.Sprintf("%s.json", rec.RecordID),
	)
}

// ArchiveRecord canonicalizes the record envelope and uploads it to S3.
func (s *S3Archiver) ArchiveRecord(ctx context.Context, rec *contracts.DecisionRecord) error {
	if rec == nil {
		return fmt.Errorf("nil record")
	}

	canonBytes, err := canonical.Marshal(recordEnvelope(rec))
	if err != nil {
		return fmt.Errorf("canonicalize envelope: %w", err)
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(s.objectKey(rec)),
		Body:                 bytes.NewReader(canonBytes),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}
	return nil
}

// ArchiveRecordAndReturnKey uploads the record and returns the object key so
// callers can persist the S3 pointer alongside the record row.
func (s *S3Archiver) ArchiveRecordAndReturnKey(ctx context.Context, rec *contracts.DecisionRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("nil record")
	}
	key := s.objectKey(rec)
	if err := s.ArchiveRecord(ctx, rec); err != nil {
		return "", err
	}
	return key, nil
}
