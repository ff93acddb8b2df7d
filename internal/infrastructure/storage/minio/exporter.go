package minio

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/KeyQTO/internal/application/reporting"
	"github.com/turtacn/KeyQTO/internal/application/takeoff"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// objectNames maps each report format to its object file name.
var objectNames = map[reporting.Format]string{
	reporting.FormatMarkdown:   "summary.md",
	reporting.FormatLinesCSV:   "lines.csv",
	reporting.FormatMaterials:  "materials.csv",
	reporting.FormatComponents: "components.csv",
	reporting.FormatJSON:       "takeoff.json",
}

// ReportExporter uploads rendered reports of a takeoff under
// <prefix><takeoff id>/.  It implements takeoff.Exporter.
type ReportExporter struct {
	client   *MinIOClient
	renderer *reporting.Renderer
	formats  []reporting.Format
	logger   logging.Logger
}

// NewReportExporter returns an exporter for the formats configured on client.
func NewReportExporter(client *MinIOClient, renderer *reporting.Renderer, logger logging.Logger) (*ReportExporter, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if renderer == nil {
		renderer = reporting.NewRenderer()
	}
	formats := make([]reporting.Format, 0, len(client.config.Formats))
	seen := map[reporting.Format]bool{}
	for _, name := range client.config.Formats {
		f, err := reporting.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	return &ReportExporter{client: client, renderer: renderer, formats: formats, logger: logger}, nil
}

// ObjectKey returns the key under which format f of takeoff id is stored.
func (e *ReportExporter) ObjectKey(id string, f reporting.Format) string {
	prefix := e.client.config.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + path.Join(id, objectNames[f])
}

// Export uploads every configured format and returns the location of the
// first one as s3://bucket/key.
func (e *ReportExporter) Export(ctx context.Context, t *takeoff.Takeoff) (string, error) {
	if e.client.isClosed() {
		return "", ErrMinIOClientClosed
	}
	if t == nil || t.ID == "" {
		return "", errors.InvalidParam("takeoff id is required")
	}

	var location string
	for _, f := range e.formats {
		data, err := e.renderer.RenderBytes(t, f)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeTakeoffExportFailed, "failed to render report").WithDetail(string(f))
		}
		key := e.ObjectKey(t.ID, f)
		info, err := e.client.client.PutObject(ctx, e.client.config.Bucket, key, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{
				ContentType: f.ContentType(),
				UserMetadata: map[string]string{
					"takeoff-id":   t.ID,
					"takeoff-name": t.Name,
					"format":       string(f),
				},
			})
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeTakeoffExportFailed, "failed to upload report").WithDetail(key)
		}
		e.logger.Debug("report uploaded",
			logging.String("bucket", info.Bucket),
			logging.String("key", key),
			logging.Int64("size", info.Size))
		if location == "" {
			location = "s3://" + e.client.config.Bucket + "/" + key
		}
	}
	e.logger.Info("takeoff exported",
		logging.String("takeoff_id", t.ID),
		logging.Int("objects", len(e.formats)),
		logging.String("location", location))
	return location, nil
}

// Exists reports whether format f of takeoff id has been uploaded.
func (e *ReportExporter) Exists(ctx context.Context, id string, f reporting.Format) (bool, error) {
	_, err := e.client.client.StatObject(ctx, e.client.config.Bucket, e.ObjectKey(id, f), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, errors.Wrap(err, errors.ErrCodeExternalService, "failed to stat report")
}

// Remove deletes every configured format of takeoff id.
func (e *ReportExporter) Remove(ctx context.Context, id string) error {
	for _, f := range e.formats {
		if err := e.client.client.RemoveObject(ctx, e.client.config.Bucket, e.ObjectKey(id, f), minio.RemoveObjectOptions{}); err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "failed to remove report").WithDetail(id)
		}
	}
	return nil
}

// DownloadURL presigns the object holding format f of takeoff id.
func (e *ReportExporter) DownloadURL(ctx context.Context, id string, f reporting.Format) (string, error) {
	ok, err := e.Exists(ctx, id, f)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrObjectNotFound
	}
	return e.client.PresignedGetURL(ctx, e.ObjectKey(id, f), 0)
}

//Personal.AI order the ending
