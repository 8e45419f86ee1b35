package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisigner/common"
	"github.com/vultisig/multisigner/config"
	"github.com/vultisig/multisigner/internal/types"
)

const archiveUploadAttempts = 3

// ExecutionArchive is the document stored for every executed proposal.
type ExecutionArchive struct {
	Transaction types.AssembledTransaction `json:"transaction"`
	TxHash      string                     `json:"tx_hash"`
	ArchivedAt  time.Time                  `json:"archived_at"`
}

// BlockStorage archives executed transactions to an S3 compatible bucket.
type BlockStorage struct {
	bucket   string
	s3Client s3iface.S3API
	logger   *logrus.Logger
}

func NewBlockStorage(cfg config.Config, logger *logrus.Logger) (*BlockStorage, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(cfg.BlockStorage.Region),
		Endpoint:         aws.String(cfg.BlockStorage.Host),
		Credentials:      credentials.NewStaticCredentials(cfg.BlockStorage.AccessKey, cfg.BlockStorage.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	return NewBlockStorageWithClient(s3.New(sess), cfg.BlockStorage.Bucket, logger), nil
}

func NewBlockStorageWithClient(client s3iface.S3API, bucket string, logger *logrus.Logger) *BlockStorage {
	return &BlockStorage{
		bucket:   bucket,
		s3Client: client,
		logger:   logger,
	}
}

func ArchiveKey(proposalID string) string {
	return "executions/" + proposalID + ".json.xz"
}

// ArchiveExecution stores the signed transaction and its hash, xz compressed.
func (bs *BlockStorage) ArchiveExecution(ctx context.Context, tx types.AssembledTransaction, txHash string) error {
	doc, err := json.Marshal(ExecutionArchive{
		Transaction: tx,
		TxHash:      txHash,
		ArchivedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal execution archive: %w", err)
	}
	compressed, err := common.CompressData(doc)
	if err != nil {
		return fmt.Errorf("failed to compress execution archive: %w", err)
	}
	return bs.UploadFileWithRetry(ctx, compressed, ArchiveKey(tx.ProposalID), archiveUploadAttempts)
}

// GetExecutionArchive loads a previously archived execution.
func (bs *BlockStorage) GetExecutionArchive(ctx context.Context, proposalID string) (*ExecutionArchive, error) {
	content, err := bs.GetFile(ctx, ArchiveKey(proposalID))
	if err != nil {
		return nil, err
	}
	doc, err := common.DecompressData(content)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress execution archive: %w", err)
	}
	var archive ExecutionArchive
	if err := json.Unmarshal(doc, &archive); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution archive: %w", err)
	}
	return &archive, nil
}

func (bs *BlockStorage) UploadFileWithRetry(ctx context.Context, fileContent []byte, fileName string, retry int) error {
	var err error
	for i := 0; i < retry; i++ {
		err = bs.UploadFile(ctx, fileContent, fileName)
		if err == nil {
			return nil
		}
		bs.logger.Error(err)
	}
	return err
}

func (bs *BlockStorage) UploadFile(ctx context.Context, fileContent []byte, fileName string) error {
	bs.logger.Infoln("upload file", fileName, "bucket", bs.bucket, "content length", len(fileContent))
	output, err := bs.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bs.bucket),
		Key:           aws.String(fileName),
		Body:          aws.ReadSeekCloser(bytes.NewReader(fileContent)),
		ContentLength: aws.Int64(int64(len(fileContent))),
	})
	if err != nil {
		return err
	}
	if output != nil {
		bs.logger.Infof("upload file %s success, version id: %s", fileName, aws.StringValue(output.VersionId))
	}
	return nil
}

func (bs *BlockStorage) GetFile(ctx context.Context, fileName string) ([]byte, error) {
	output, err := bs.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bs.bucket),
		Key:    aws.String(fileName),
	})
	if err != nil {
		bs.logger.Error("error getting file: ", err)
		return nil, err
	}
	defer func() {
		if err := output.Body.Close(); err != nil {
			bs.logger.Error(err)
		}
	}()
	return io.ReadAll(output.Body)
}
