package metricsink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/golang/snappy"

	"github.com/kardelitaitu/testnet-spammer/ids"
)

// S3Archiver cold-archives flushed batches to S3 as snappy-compressed
// JSON blobs. Like KafkaPublisher, it is a best-effort fan-out: the
// primary RowStore is the durability guarantee, this is a convenience
// copy for offline analysis.
type S3Archiver struct {
	client *s3.S3
	bucket string
	prefix string
}

// NewS3Archiver builds an archiver using the default AWS SDK credential
// chain and region resolution.
func NewS3Archiver(bucket, prefix string) (*S3Archiver, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, err
	}
	return &S3Archiver{client: s3.New(sess), bucket: bucket, prefix: prefix}, nil
}

// Archive compresses rows with snappy and uploads them under a
// timestamp- and id-qualified key.
func (a *S3Archiver) Archive(rows []Row) error {
	raw, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	compressed := snappy.Encode(nil, raw)

	key := fmt.Sprintf("%s/%s-%s.json.snappy", a.prefix, time.Now().UTC().Format("2006/01/02/150405"), ids.NewMetricRowID())
	_, err = a.client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(compressed),
	})
	if err != nil {
		logger.Warnw("s3 archive upload failed", "err", err, "key", key)
	}
	return err
}
