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
	"io"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stockparfait/jquants/db"

	. "github.com/smartystreets/goconvey/convey"
)

// fakeS3 is an in-memory S3API listing at most two keys per page, to exercise
// the list pagination.
type fakeS3 struct {
	objects map[string][]byte
}

var _ S3API = &fakeS3{}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	keys := []string{}
	for k := range f.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k > aws.ToString(in.ContinuationToken) {
				start = i
				break
			}
		}
	}
	const pageSize = 2
	end := start + pageSize
	if end > len(keys) {
		end = len(keys)
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end-1])
	}
	return out, nil
}

func TestS3Store(t *testing.T) {
	t.Parallel()

	Convey("S3Store", t, func() {
		ctx := context.Background()
		api := newFakeS3()
		store := NewS3Store(api, "test-bucket", "jquants/")

		feb := db.NewDate(2024, 2, 29)
		mar1 := db.NewDate(2024, 3, 1)
		mar4 := db.NewDate(2024, 3, 4)

		Convey("round trip with list pagination", func() {
			rows := []Row{
				testRow("prices", feb, map[string]interface{}{"Close": 99.0}),
				testRow("prices", mar1, map[string]interface{}{"Close": 100.0}),
				testRow("prices", mar4, map[string]interface{}{"Close": 100.5}),
				// A third object under the table prefix forces a second list
				// page; the symbol filter must skip it.
				testRow("other", feb, map[string]interface{}{"Close": 1.0}),
			}
			So(store.Upload(ctx, "price", rows), ShouldBeNil)
			// Another table under the same prefix should not leak into queries.
			So(store.Upload(ctx, "topix", []Row{
				testRow("topix", mar4, map[string]interface{}{"Close": 2700.0}),
			}), ShouldBeNil)

			So(len(api.objects), ShouldEqual, 4)
			_, ok := api.objects["jquants/price/2024-03-01/prices.gob"]
			So(ok, ShouldBeTrue)

			got, err := store.Query(ctx, "price", feb.ToTime(), []string{"prices"})
			So(err, ShouldBeNil)
			So(testDates(got), ShouldResemble, []db.Date{feb, mar1, mar4})
			So(got[2].Values["Close"], ShouldEqual, 100.5)
		})

		Convey("query filters by startDT and skips older partitions", func() {
			So(store.Upload(ctx, "price", []Row{
				testRow("prices", feb, map[string]interface{}{"Close": 99.0}),
				testRow("prices", mar1, map[string]interface{}{"Close": 100.0}),
				testRow("prices", mar4, map[string]interface{}{"Close": 100.5}),
			}), ShouldBeNil)
			got, err := store.Query(ctx, "price", mar4.ToTime(), []string{"prices"})
			So(err, ShouldBeNil)
			So(testDates(got), ShouldResemble, []db.Date{mar4})
		})

		Convey("upload replaces the touched partition completely", func() {
			So(store.Upload(ctx, "price", []Row{
				testRow("prices", mar1, map[string]interface{}{"Close": 100.0}),
				testRow("prices", mar4, map[string]interface{}{"Close": 100.5}),
			}), ShouldBeNil)
			So(store.Upload(ctx, "price", []Row{
				testRow("prices", mar4, map[string]interface{}{"Close": 200.0}),
			}), ShouldBeNil)
			got, err := store.Query(ctx, "price", mar1.ToTime(), []string{"prices"})
			So(err, ShouldBeNil)
			So(testDates(got), ShouldResemble, []db.Date{mar4})
			So(got[0].Values["Close"], ShouldEqual, 200.0)
		})

		Convey("query of an empty table is empty, not an error", func() {
			got, err := store.Query(ctx, "nope", feb.ToTime(), []string{"prices"})
			So(err, ShouldBeNil)
			So(got, ShouldResemble, []Row{})
		})

		Convey("upload validates the required columns", func() {
			So(store.Upload(ctx, "price", []Row{{Symbol: "prices"}}), ShouldNotBeNil)
		})
	})
}
