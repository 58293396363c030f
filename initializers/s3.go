package initializers

import (
	"context"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"ats-sync-backend/config"
	workbookstorage "ats-sync-backend/lib/workbook-storage"
)

// InitWorkbookStorage книга хранится в S3, без настроек S3 в локальном файле
func InitWorkbookStorage() {
	if config.Conf.S3.Endpoint == "" {
		log.WithField("path", config.Conf.Workbook.LocalPath).Info("S3 не настроен, книга хранится в локальном файле")
		workbookstorage.Instance = workbookstorage.NewFileInstance(config.Conf.Workbook.LocalPath)
		return
	}
	minioClient, err := minio.New(config.Conf.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.Conf.S3.AccessKeyID, config.Conf.S3.SecretAccessKey, ""),
		Secure: *config.Conf.S3.UseSSL,
	})
	if err != nil {
		panic("Ошибка инициализации клиента S3: " + err.Error())
	}

	// Проверка соединения
	_, err = minioClient.ListBuckets(context.Background())
	if err != nil {
		log.WithError(err).Error("S3 соединение не удалось, ListBuckets вернул ошибку")
	}

	workbookstorage.Instance = workbookstorage.NewS3Instance(minioClient, config.Conf.S3.BucketName, config.Conf.S3.WorkbookObject)
	log.Info("S3 клиент успешно инициализирован")
}
