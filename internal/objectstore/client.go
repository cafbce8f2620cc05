// Copyright 2026 The Chess Pipeline Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package objectstore wraps the S3-compatible bucket (Garage/MinIO-style,
// per infra.storage.endpoint) that owns every durable artifact: archive
// chunks and manifests, split checkpoints, and CSV sink files (§4.2, §6.3).
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// ChunkSize is the target size of an ArchiveChunk; the final chunk of a
// file may be smaller (§3).
const ChunkSize = 100 * 1024 * 1024

// Client wraps an s3.Client bound to a single bucket.
type Client struct {
	s3     *s3.Client
	bucket string
}

// New constructs a Client against an S3-compatible endpoint. accessKey and
// secretKey may be empty when the environment already supplies default AWS
// credentials.
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string) (*Client, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if accessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	if region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	cl := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})
	return &Client{s3: cl, bucket: bucket}, nil
}

func manifestKey(logicalPath string) string { return logicalPath + "/metadata" }
func chunkKey(logicalPath string, index int) string {
	return logicalPath + "/" + strconv.Itoa(index)
}
func checkpointKey(logicalPath string) string { return logicalPath + "/split_state" }

// manifestDoc is the JSON body at {logical_path}/metadata (§6.3).
type manifestDoc struct {
	TotalChunks uint64 `json:"total_chunks"`
}

// checkpointDoc is the JSON body at {logical_path}/split_state (§6.3).
type checkpointDoc struct {
	GamesProduced uint64 `json:"games_produced"`
}

// PutManifest writes the manifest that marks logicalPath as ingested.
// Invariant: callers must write this before publishing archive-file-synced (§3).
func (c *Client) PutManifest(ctx context.Context, logicalPath string, totalChunks uint64) error {
	body, err := json.Marshal(manifestDoc{TotalChunks: totalChunks})
	if err != nil {
		return fmt.Errorf("objectstore: encode manifest: %w", err)
	}
	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(manifestKey(logicalPath)),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("objectstore: put manifest %s: %w", logicalPath, err)
	}
	return nil
}

// ManifestExists is the idempotency gate the Fetcher checks before starting
// a fresh download (§4.3 step 2).
func (c *Client) ManifestExists(ctx context.Context, logicalPath string) (bool, error) {
	return c.exists(ctx, manifestKey(logicalPath))
}

// Manifest fetches and decodes the manifest, used by the Fetcher's
// corruption check against a changed Content-Length (§4.3, §9).
func (c *Client) Manifest(ctx context.Context, logicalPath string) (totalChunks uint64, err error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(manifestKey(logicalPath)),
	})
	if err != nil {
		return 0, fmt.Errorf("objectstore: get manifest %s: %w", logicalPath, err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return 0, fmt.Errorf("objectstore: read manifest %s: %w", logicalPath, err)
	}
	var doc manifestDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, fmt.Errorf("objectstore: decode manifest %s: %w", logicalPath, err)
	}
	return doc.TotalChunks, nil
}

// ChunkExists probes write-once chunk presence with a ranged GET of the
// first 8 bytes, per §4.2's literal existence check.
func (c *Client) ChunkExists(ctx context.Context, logicalPath string, index int) (bool, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(chunkKey(logicalPath, index)),
		Range:  aws.String("bytes=0-7"),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("objectstore: probe chunk %s/%d: %w", logicalPath, index, err)
	}
	out.Body.Close()
	return true, nil
}

// PutChunk writes one chunk. Callers must have already checked ChunkExists
// to preserve write-once semantics (§3).
func (c *Client) PutChunk(ctx context.Context, logicalPath string, index int, data []byte) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(chunkKey(logicalPath, index)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("objectstore: put chunk %s/%d: %w", logicalPath, index, err)
	}
	return nil
}

// GetChunk reads one full chunk back, used by ChunkReader.
func (c *Client) GetChunk(ctx context.Context, logicalPath string, index int) ([]byte, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(chunkKey(logicalPath, index)),
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: get chunk %s/%d: %w", logicalPath, index, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("objectstore: read chunk %s/%d: %w", logicalPath, index, err)
	}
	return data, nil
}

// PutSplitCheckpoint persists the splitter's games_produced watermark, at
// most once per ~60s of wall time (§3, §4.4).
func (c *Client) PutSplitCheckpoint(ctx context.Context, logicalPath string, gamesProduced uint64) error {
	body, err := json.Marshal(checkpointDoc{GamesProduced: gamesProduced})
	if err != nil {
		return fmt.Errorf("objectstore: encode checkpoint %s: %w", logicalPath, err)
	}
	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(checkpointKey(logicalPath)),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("objectstore: put checkpoint %s: %w", logicalPath, err)
	}
	return nil
}

// GetSplitCheckpoint returns 0 when no checkpoint has ever been written,
// matching the default in §3.
func (c *Client) GetSplitCheckpoint(ctx context.Context, logicalPath string) (uint64, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(checkpointKey(logicalPath)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("objectstore: get checkpoint %s: %w", logicalPath, err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return 0, fmt.Errorf("objectstore: read checkpoint %s: %w", logicalPath, err)
	}
	var doc checkpointDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, fmt.Errorf("objectstore: malformed checkpoint %s: %w", logicalPath, err)
	}
	return doc.GamesProduced, nil
}

// CSVKind selects which game-data/ prefix a CSV file is spooled under (§6.3).
type CSVKind string

const (
	CSVKindGames        CSVKind = "games"
	CSVKindMoves        CSVKind = "moves"
	CSVKindCommentEvals CSVKind = "comment_evals"
)

// PutCSVFile stores one flushed CSV batch under game-data/{kind}/{key}.
func (c *Client) PutCSVFile(ctx context.Context, kind CSVKind, key string, data []byte) error {
	objectKey := "game-data/" + string(kind) + "/" + key
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("objectstore: put csv file %s: %w", objectKey, err)
	}
	return nil
}

func (c *Client) exists(ctx context.Context, key string) (bool, error) {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("objectstore: head %s: %w", key, err)
	}
	return true, nil
}

func isNotFound(err error) bool {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 404
	}
	return false
}
