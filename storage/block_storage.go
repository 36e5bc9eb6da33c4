package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/frostvault/frostvault/config"
	"github.com/frostvault/frostvault/internal/types"
)

// BlockStorage archives withdrawal receipts in an S3-compatible bucket.
type BlockStorage struct {
	cfg      config.Config
	session  *session.Session
	s3Client *s3.S3
	logger   *logrus.Logger
}

func NewBlockStorage(cfg config.Config) (*BlockStorage, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(cfg.BlockStorage.Region),
		Endpoint:         aws.String(cfg.BlockStorage.Host),
		Credentials:      credentials.NewStaticCredentials(cfg.BlockStorage.AccessKey, cfg.BlockStorage.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	return &BlockStorage{
		cfg:      cfg,
		session:  sess,
		s3Client: s3.New(sess),
		logger:   logrus.WithField("module", "block_storage").Logger,
	}, nil
}

// UploadReceiptWithRetry uploads a receipt, retrying transient failures.
func (bs *BlockStorage) UploadReceiptWithRetry(receipt types.WithdrawalReceipt, retry int) error {
	var err error
	for i := 0; i < retry; i++ {
		err = bs.UploadReceipt(receipt)
		if err == nil {
			return nil
		}
		bs.logger.Error(err)
	}
	return err
}

// UploadReceipt stores one withdrawal receipt, keyed by its tx id.
func (bs *BlockStorage) UploadReceipt(receipt types.WithdrawalReceipt) error {
	content, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("fail to serialize receipt to json, err: %w", err)
	}
	key := receiptKey(receipt.TxID)
	bs.logger.Infoln("upload receipt", key, "bucket", bs.cfg.BlockStorage.Bucket, "content length", len(content))
	output, err := bs.s3Client.PutObjectWithContext(context.TODO(), &s3.PutObjectInput{
		Bucket:        aws.String(bs.cfg.BlockStorage.Bucket),
		Key:           aws.String(key),
		Body:          aws.ReadSeekCloser(bytes.NewReader(content)),
		ContentLength: aws.Int64(int64(len(content))),
	})
	if err != nil {
		bs.logger.Error(err)
		return err
	}
	if output != nil {
		bs.logger.Infof("upload receipt %s success, version id: %s", key, aws.StringValue(output.VersionId))
	}
	return nil
}

// GetReceipt fetches an archived receipt by tx id.
func (bs *BlockStorage) GetReceipt(txID string) (*types.WithdrawalReceipt, error) {
	output, err := bs.s3Client.GetObjectWithContext(context.TODO(), &s3.GetObjectInput{
		Bucket: aws.String(bs.cfg.BlockStorage.Bucket),
		Key:    aws.String(receiptKey(txID)),
	})
	if err != nil {
		bs.logger.Error("error getting receipt: ", err)
		return nil, err
	}
	defer func() {
		if err := output.Body.Close(); err != nil {
			bs.logger.Error(err)
		}
	}()
	content, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, err
	}
	var receipt types.WithdrawalReceipt
	if err := json.Unmarshal(content, &receipt); err != nil {
		return nil, fmt.Errorf("fail to deserialize receipt, err: %w", err)
	}
	return &receipt, nil
}

// ReceiptExists reports whether a receipt is already archived.
func (bs *BlockStorage) ReceiptExists(txID string) (bool, error) {
	_, err := bs.s3Client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(bs.cfg.BlockStorage.Bucket),
		Key:    aws.String(receiptKey(txID)),
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}

func receiptKey(txID string) string {
	return fmt.Sprintf("receipts/%s.json", txID)
}
