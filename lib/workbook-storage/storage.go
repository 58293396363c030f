package workbookstorage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"ats-sync-backend/lib/sheet/xlsx"
)

const contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Provider хранение книги с таблицами между запусками
type Provider interface {
	// Load читает книгу, при отсутствии возвращает новую пустую
	Load(ctx context.Context) (*xlsx.Workbook, error)
	Save(ctx context.Context, wb *xlsx.Workbook) error
}

var Instance Provider

func NewS3Instance(s3client *minio.Client, bucketName, objectName string) Provider {
	return &s3impl{
		s3client:   s3client,
		bucketName: bucketName,
		objectName: objectName,
	}
}

type s3impl struct {
	s3client   *minio.Client
	bucketName string
	objectName string
}

func (i s3impl) getLogger() *log.Entry {
	return log.
		WithField("bucket", i.bucketName).
		WithField("object", i.objectName)
}

func (i s3impl) makeBucket(ctx context.Context) error {
	location := "us-east-1"
	exists, err := i.s3client.BucketExists(ctx, i.bucketName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return i.s3client.MakeBucket(ctx, i.bucketName, minio.MakeBucketOptions{Region: location})
}

func (i s3impl) Load(ctx context.Context) (*xlsx.Workbook, error) {
	if err := i.makeBucket(ctx); err != nil {
		return nil, errors.Wrap(err, "ошибка проверки бакета")
	}
	_, err := i.s3client.StatObject(ctx, i.bucketName, i.objectName, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			i.getLogger().Info("книга не найдена, создана новая")
			return xlsx.New(), nil
		}
		return nil, errors.Wrap(err, "ошибка чтения сведений о книге")
	}
	obj, err := i.s3client.GetObject(ctx, i.bucketName, i.objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "ошибка загрузки книги")
	}
	defer obj.Close()
	return xlsx.Open(obj)
}

func (i s3impl) Save(ctx context.Context, wb *xlsx.Workbook) error {
	reader, size, err := wb.Reader()
	if err != nil {
		return err
	}
	_, err = i.s3client.PutObject(ctx, i.bucketName, i.objectName, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrap(err, "ошибка сохранения книги")
	}
	i.getLogger().WithField("size", size).Debug("книга сохранена")
	return nil
}

// NewFileInstance книга в локальном файле, используется без S3
func NewFileInstance(path string) Provider {
	return &fileImpl{path: path}
}

type fileImpl struct {
	path string
}

func (i fileImpl) Load(ctx context.Context) (*xlsx.Workbook, error) {
	data, err := os.ReadFile(i.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", i.path).Info("книга не найдена, создана новая")
			return xlsx.New(), nil
		}
		return nil, errors.Wrap(err, "ошибка чтения книги")
	}
	return xlsx.Open(bytes.NewReader(data))
}

func (i fileImpl) Save(ctx context.Context, wb *xlsx.Workbook) error {
	data, err := wb.Bytes()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(i.path), ".workbook-*.xlsx")
	if err != nil {
		return errors.Wrap(err, "ошибка создания временного файла")
	}
	defer os.Remove(tmp.Name())
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "ошибка записи книги")
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), i.path)
}
