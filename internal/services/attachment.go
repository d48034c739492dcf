package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path"

	"github.com/taskhive/apiserver/internal/storage"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
)

// AttachmentRepository defines persistence operations for attachment
// metadata.
type AttachmentRepository interface {
	ListByTask(ctx context.Context, taskID int) ([]types.Attachment, error)
	Get(ctx context.Context, id int) (types.Attachment, error)
	Create(ctx context.Context, att types.Attachment) (types.Attachment, error)
	Delete(ctx context.Context, id int) error
}

// AttachmentService stores task attachments: metadata in the repository
// and bytes in object storage. All operations authorize through the
// owning task first.
type AttachmentService struct {
	repo    AttachmentRepository
	tasks   *TaskService
	objects *storage.Storage
}

func NewAttachmentService(repo AttachmentRepository, tasks *TaskService, objects *storage.Storage) *AttachmentService {
	return &AttachmentService{repo: repo, tasks: tasks, objects: objects}
}

// List returns the attachments of an owned task.
func (s *AttachmentService) List(ctx context.Context, userID, taskID int) ([]types.Attachment, error) {
	if _, err := s.tasks.GetOwned(ctx, userID, taskID); err != nil {
		return nil, err
	}
	return s.repo.ListByTask(ctx, taskID)
}

// Upload stores the file bytes and records the metadata row. If the
// metadata insert fails the uploaded object is removed again.
func (s *AttachmentService) Upload(ctx context.Context, userID, taskID int, fileName, contentType string, data []byte) (types.Attachment, error) {
	if _, err := s.tasks.GetOwned(ctx, userID, taskID); err != nil {
		return types.Attachment{}, err
	}

	key := objectKey(taskID, fileName)
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.Attachment{}, fmt.Errorf("upload attachment: %w", err)
	}

	att, err := s.repo.Create(ctx, types.Attachment{
		TaskID:      taskID,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		ObjectKey:   key,
	})
	if err != nil {
		_ = s.objects.Delete(ctx, key)
		return types.Attachment{}, err
	}
	return att, nil
}

// Open returns the attachment metadata and a reader over its bytes.
// The caller closes the reader.
func (s *AttachmentService) Open(ctx context.Context, userID, taskID, attachmentID int) (types.Attachment, io.ReadCloser, error) {
	att, err := s.getOwned(ctx, userID, taskID, attachmentID)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	reader, err := s.objects.Get(ctx, att.ObjectKey)
	if err != nil {
		return types.Attachment{}, nil, fmt.Errorf("open attachment: %w", err)
	}
	return att, reader, nil
}

// Delete removes the metadata row and the stored object.
func (s *AttachmentService) Delete(ctx context.Context, userID, taskID, attachmentID int) error {
	att, err := s.getOwned(ctx, userID, taskID, attachmentID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, att.ID); err != nil {
		return err
	}
	return s.objects.Delete(ctx, att.ObjectKey)
}

func (s *AttachmentService) getOwned(ctx context.Context, userID, taskID, attachmentID int) (types.Attachment, error) {
	if _, err := s.tasks.GetOwned(ctx, userID, taskID); err != nil {
		return types.Attachment{}, err
	}
	att, err := s.repo.Get(ctx, attachmentID)
	if err != nil {
		return types.Attachment{}, err
	}
	// An attachment id under the wrong task path is treated as absent.
	if att.TaskID != taskID {
		return types.Attachment{}, store.ErrNotFound
	}
	return att, nil
}

func objectKey(taskID int, fileName string) string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Sprintf("tasks/%d/%s", taskID, path.Base(fileName))
	}
	return fmt.Sprintf("tasks/%d/%s-%s", taskID, hex.EncodeToString(buf[:]), path.Base(fileName))
}
