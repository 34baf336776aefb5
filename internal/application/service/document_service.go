package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/domain"
	"github.com/garyjia/travel-desk/internal/domain/entity"
)

// maxAttachmentSize caps a single uploaded document
const maxAttachmentSize = 20 << 20

// KeyFunc builds the storage path for an uploaded document
type KeyFunc func(referenceCode, kind, fileName string) string

// AttachFileInput is one uploaded document
type AttachFileInput struct {
	TripID      int64
	ActorID     int64
	Kind        string
	FileName    string
	ContentType string
	Content     []byte
}

// DocumentService stores receipts, travel options and visas against a trip
type DocumentService interface {
	AttachFile(ctx context.Context, input AttachFileInput) (*entity.TripFile, error)
	ListFiles(ctx context.Context, tripID int64, kinds ...string) ([]*entity.TripFile, error)
}

type documentServiceImpl struct {
	tripRepo  port.TripRepository
	fileRepo  port.FileRepository
	directory port.Directory
	fileStore port.FileStore
	keyFunc   KeyFunc
	logger    Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	tripRepo port.TripRepository,
	fileRepo port.FileRepository,
	directory port.Directory,
	fileStore port.FileStore,
	keyFunc KeyFunc,
	logger Logger,
) DocumentService {
	return &documentServiceImpl{
		tripRepo:  tripRepo,
		fileRepo:  fileRepo,
		directory: directory,
		fileStore: fileStore,
		keyFunc:   keyFunc,
		logger:    logger,
	}
}

// AttachFile saves the blob first and then records it. If the record cannot
// be written the blob is removed again.
func (s *documentServiceImpl) AttachFile(ctx context.Context, input AttachFileInput) (*entity.TripFile, error) {
	if err := validateAttachment(input); err != nil {
		return nil, err
	}

	trip, err := s.tripRepo.GetByID(ctx, input.TripID)
	if err != nil {
		return nil, err
	}
	if trip.Status.IsTerminal() {
		return nil, domain.NewPreconditionError("attach file", string(trip.Status),
			fmt.Errorf("trip %s is closed", trip.ReferenceCode))
	}

	if input.Kind == entity.FileKindOther {
		err = requireOwnerOrAdmin(ctx, s.directory, trip, input.ActorID)
	} else {
		_, err = requireAdmin(ctx, s.directory, input.ActorID)
	}
	if err != nil {
		return nil, err
	}

	path := s.keyFunc(trip.ReferenceCode, input.Kind, input.FileName)
	if err := s.fileStore.Save(ctx, path, input.Content, input.ContentType); err != nil {
		s.logger.Error("Failed to store file", "error", err, "trip_id", trip.ID, "path", path)
		return nil, fmt.Errorf("store file: %w", err)
	}

	file := &entity.TripFile{
		TripID:      trip.ID,
		Kind:        input.Kind,
		Path:        path,
		FileName:    input.FileName,
		ContentType: input.ContentType,
		Size:        int64(len(input.Content)),
		UploadedBy:  input.ActorID,
		CreatedAt:   time.Now(),
	}
	if err := s.fileRepo.Create(ctx, file); err != nil {
		if delErr := s.fileStore.Delete(ctx, path); delErr != nil {
			s.logger.Error("Failed to remove orphaned file", "error", delErr, "path", path)
		}
		return nil, fmt.Errorf("create file record: %w", err)
	}

	s.logger.Info("File attached",
		"reference_code", trip.ReferenceCode,
		"kind", file.Kind,
		"file_id", file.ID,
		"size", file.Size)

	return file, nil
}

// ListFiles returns the trip's documents, optionally filtered by kind
func (s *documentServiceImpl) ListFiles(ctx context.Context, tripID int64, kinds ...string) ([]*entity.TripFile, error) {
	if _, err := s.tripRepo.GetByID(ctx, tripID); err != nil {
		return nil, err
	}
	return s.fileRepo.ListByTripID(ctx, tripID, kinds...)
}

func validateAttachment(input AttachFileInput) error {
	if !entity.IsValidFileKind(input.Kind) {
		return fmt.Errorf("%w: unknown file kind %q", domain.ErrInvalidInput, input.Kind)
	}
	if strings.TrimSpace(input.FileName) == "" {
		return fmt.Errorf("%w: file name is required", domain.ErrInvalidInput)
	}
	if len(input.Content) == 0 {
		return fmt.Errorf("%w: file is empty", domain.ErrInvalidInput)
	}
	if len(input.Content) > maxAttachmentSize {
		return fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidInput, maxAttachmentSize)
	}
	return nil
}
