// Copyright 2026 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tsdb

import (
	"bytes"
	"context"
	"encoding/gob"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/jquants/db"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ S3API = &s3.Client{}

// S3Store persists tables as gob objects in an S3 bucket, one object per
// partition and symbol: <prefix>/<table>/<partition>/<symbol>.gob - the same
// layout as LocalStore. S3 object puts are atomic, so a failed upload leaves
// the previous partition object in place.
type S3Store struct {
	api    S3API
	bucket string
	prefix string
}

var _ Store = &S3Store{}

// NewS3Store creates a store writing under s3://<bucket>/<prefix>.
func NewS3Store(api S3API, bucket, prefix string) *S3Store {
	return &S3Store{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Store) key(table string, partition db.Date, symbol string) string {
	return path.Join(s.prefix, table, partition.String(), symbol+".gob")
}

// Upload implements Store.
func (s *S3Store) Upload(ctx context.Context, table string, rows []Row) error {
	if err := validate(rows); err != nil {
		return errors.Annotate(err, "invalid upload to table '%s'", table)
	}
	for k, g := range groupByPartition(rows) {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(g); err != nil {
			return errors.Annotate(err, "failed to encode partition %s/%s",
				k.partition, k.symbol)
		}
		key := s.key(table, k.partition, k.symbol)
		_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(buf.Bytes()),
		})
		if err != nil {
			return errors.Annotate(err, "failed to put 's3://%s/%s'", s.bucket, key)
		}
	}
	return nil
}

// Query implements Store.
func (s *S3Store) Query(ctx context.Context, table string, startDT time.Time, symbols []string) ([]Row, error) {
	prefix := path.Join(s.prefix, table) + "/"
	startMonth := db.NewDateFromTime(startDT).MonthStart()
	wanted := symbolSet(symbols)
	result := []Row{}
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	for {
		out, err := s.api.ListObjectsV2(ctx, in)
		if err != nil {
			return nil, errors.Annotate(err, "failed to list 's3://%s/%s'", s.bucket, prefix)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			partition, symbol, ok := parseKey(strings.TrimPrefix(key, prefix))
			if !ok || !wanted[symbol] {
				continue
			}
			if partition.Before(startMonth) {
				continue
			}
			rows, err := s.readObject(ctx, key)
			if err != nil {
				return nil, err
			}
			for _, r := range rows {
				if !r.DT.Before(startDT) {
					result = append(result, r)
				}
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		in.ContinuationToken = out.NextContinuationToken
	}
	sortByDT(result)
	return result, nil
}

func (s *S3Store) readObject(ctx context.Context, key string) ([]Row, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Annotate(err, "failed to get 's3://%s/%s'", s.bucket, key)
	}
	defer out.Body.Close()
	var rows []Row
	if err := gob.NewDecoder(out.Body).Decode(&rows); err != nil {
		return nil, errors.Annotate(err, "failed to decode 's3://%s/%s'", s.bucket, key)
	}
	return rows, nil
}

// parseKey splits a "<partition>/<symbol>.gob" relative key.
func parseKey(rel string) (db.Date, string, bool) {
	parts := strings.Split(rel, "/")
	if len(parts) != 2 || !strings.HasSuffix(parts[1], ".gob") {
		return db.Date{}, "", false
	}
	partition, err := db.NewDateFromString(parts[0])
	if err != nil {
		return db.Date{}, "", false
	}
	return partition, strings.TrimSuffix(parts[1], ".gob"), true
}
