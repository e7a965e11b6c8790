// Package report exports page-level failure records as Parquet objects for
// offline analysis.
package report

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"path"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/comical/pkg/batch/adapter/storage"
	storageconfig "github.com/tigerroll/comical/pkg/batch/adapter/storage/config"
	service "github.com/tigerroll/comical/pkg/batch/core/application/service"
	config "github.com/tigerroll/comical/pkg/batch/core/config"
	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	"github.com/tigerroll/comical/pkg/batch/support/util/exception"
	"github.com/tigerroll/comical/pkg/batch/support/util/logger"
)

// pageErrorRow is the Parquet schema for one exported page error.
type pageErrorRow struct {
	BatchID      string `parquet:"name=batch_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	BatchDate    string `parquet:"name=batch_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	PageNumber   int32  `parquet:"name=page_number, type=INT32"`
	Phase        string `parquet:"name=phase, type=BYTE_ARRAY, convertedtype=UTF8"`
	ErrorType    string `parquet:"name=error_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	ErrorMessage string `parquet:"name=error_message, type=BYTE_ARRAY, convertedtype=UTF8"`
	RetryCount   int32  `parquet:"name=retry_count, type=INT32"`
	LastRetryAt  int64  `parquet:"name=last_retry_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

// PageErrorExporter writes the unresolved page errors of a batch phase to a
// Parquet object under the configured report prefix, partitioned by batch
// date (dt=YYYY-MM-DD).
type PageErrorExporter struct {
	states   *service.BatchStateService
	resolver *storage.ConnectionResolver
	cfg      *config.Config
}

// NewPageErrorExporter creates the exporter.
func NewPageErrorExporter(states *service.BatchStateService, resolver *storage.ConnectionResolver, cfg *config.Config) *PageErrorExporter {
	return &PageErrorExporter{states: states, resolver: resolver, cfg: cfg}
}

// ExportPageErrors writes all unresolved page errors of the given batch and
// phase to storage. A disabled report configuration or an empty error set is
// a no-op.
func (e *PageErrorExporter) ExportPageErrors(ctx context.Context, batchID string, phase model.Phase) error {
	const op = "report"

	reportCfg := e.cfg.Comical.Batch.Report
	if !reportCfg.Enabled {
		return nil
	}

	state, err := e.states.Get(ctx, batchID)
	if err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to load batch %s for report", batchID), err, false, false)
	}

	pageErrors, err := e.states.GetUnresolvedErrors(ctx, batchID, phase)
	if err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to load page errors for batch %s", batchID), err, false, false)
	}
	if len(pageErrors) == 0 {
		logger.Debugf("No unresolved page errors for batch %s (%s), skipping report.", batchID, phase)
		return nil
	}

	codec, err := compressionCodec(reportCfg.CompressionType)
	if err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("invalid report compression type '%s'", reportCfg.CompressionType), err, false, false)
	}

	batchDate := state.BatchDate.Format("2006-01-02")
	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(pageErrorRow), int64(len(pageErrors)))
	if err != nil {
		return exception.NewBatchError(op, "failed to create Parquet writer", err, false, false)
	}
	pw.CompressionType = codec

	for _, pe := range pageErrors {
		row := pageErrorRow{
			BatchID:      pe.BatchID,
			BatchDate:    batchDate,
			PageNumber:   int32(pe.PageNumber),
			Phase:        pe.Phase.String(),
			ErrorType:    pe.ErrorType,
			ErrorMessage: pe.ErrorMessage,
			RetryCount:   int32(pe.RetryCount),
			LastRetryAt:  pe.LastRetryAt.UnixMilli(),
		}
		if err := pw.Write(row); err != nil {
			return exception.NewBatchError(op, fmt.Sprintf("failed to write page error row for page %d", pe.PageNumber), err, false, false)
		}
	}
	if err := writeStop(pw); err != nil {
		return exception.NewBatchError(op, "failed to finalize Parquet file", err, false, false)
	}

	conn, bucket, err := e.reportStorage()
	if err != nil {
		return err
	}

	fileName := fmt.Sprintf("page_errors_%s_%s_%s.parquet", phase, time.Now().Format("20060102150405"), randomSuffix(8))
	objectName := path.Join(reportCfg.Prefix, "dt="+batchDate, fileName)

	if err := conn.Upload(ctx, bucket, objectName, buf, "application/octet-stream"); err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to upload report to %s", objectName), err, false, true)
	}
	logger.Infof("Exported %d page errors for batch %s (%s) to %s", len(pageErrors), batchID, phase, objectName)
	return nil
}

// reportStorage resolves the report storage connection and its bucket name.
func (e *PageErrorExporter) reportStorage() (storage.StorageConnection, string, error) {
	const op = "report"

	ref := e.cfg.Comical.Batch.Report.StorageRef
	conn, err := e.resolver.Resolve(ref)
	if err != nil {
		return nil, "", exception.NewBatchError(op, fmt.Sprintf("failed to resolve report storage '%s'", ref), err, false, false)
	}

	var storageCfg storageconfig.StorageConfig
	if err := storage.DecodeStorageConfig(e.cfg, ref, &storageCfg); err != nil {
		return nil, "", exception.NewBatchError(op, fmt.Sprintf("failed to decode report storage config '%s'", ref), err, false, false)
	}
	return conn, storageCfg.BucketName, nil
}

// writeStop finalizes the Parquet file, converting library panics into errors.
func writeStop(pw *writer.ParquetWriter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked during WriteStop: %v", r)
		}
	}()
	return pw.WriteStop()
}

func compressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

func randomSuffix(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[seededRand.Intn(len(charset))]
	}
	return string(b)
}
