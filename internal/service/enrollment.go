package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/gymdesk/internal/errs"
	"github.com/and161185/gymdesk/internal/model"
	"github.com/and161185/gymdesk/internal/repository"
)

// TemplateCipher seals and opens fingerprint templates at rest.
type TemplateCipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(blob []byte) ([]byte, error)
}

// TemplateRecord is one member of a template download page.
// Fingerprint slots hold plaintext template bytes; nil when not enrolled.
type TemplateRecord struct {
	ID           int64
	DocumentID   string
	FullName     string
	Email        string
	Fingerprint1 []byte
	Fingerprint2 []byte
}

// EnrollmentService backs the kiosk fingerprint protocol.
type EnrollmentService interface {
	// Member loads the enrollment target by ID.
	Member(ctx context.Context, id int64) (*model.User, error)
	// TemplatePage returns up to limit members of a gym starting at offset, templates decrypted.
	TemplatePage(ctx context.Context, gymID int64, offset, limit int) ([]TemplateRecord, error)
	// Complete encrypts both templates and stores them in one update.
	Complete(ctx context.Context, memberID int64, fp1, fp2 []byte) error
}

type EnrollmentServiceImpl struct {
	users  repository.UserRepository
	cipher TemplateCipher
	log    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(users repository.UserRepository, c TemplateCipher, log *zap.Logger) *EnrollmentServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &EnrollmentServiceImpl{users: users, cipher: c, log: log}
}

func (s *EnrollmentServiceImpl) Member(ctx context.Context, id int64) (*model.User, error) {
	if id <= 0 {
		return nil, errs.ErrNotFound
	}
	return s.users.GetByID(ctx, id)
}

// TemplatePage decrypts each present slot. A slot that fails to decrypt is
// omitted from its record and logged; the rest of the page is still served.
func (s *EnrollmentServiceImpl) TemplatePage(ctx context.Context, gymID int64, offset, limit int) ([]TemplateRecord, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: bad page window", errs.ErrValidation)
	}
	members, err := s.users.ListMembers(ctx, gymID, offset, limit)
	if err != nil {
		return nil, err
	}
	out := make([]TemplateRecord, 0, len(members))
	for _, m := range members {
		out = append(out, TemplateRecord{
			ID:           m.ID,
			DocumentID:   m.DocumentID,
			FullName:     m.FullName,
			Email:        m.Email,
			Fingerprint1: s.open(m.ID, 1, m.Fingerprint1),
			Fingerprint2: s.open(m.ID, 2, m.Fingerprint2),
		})
	}
	return out, nil
}

func (s *EnrollmentServiceImpl) open(memberID int64, slot int, blob model.EncryptedBlob) []byte {
	if len(blob) == 0 {
		return nil
	}
	pt, err := s.cipher.Decrypt(blob)
	if err != nil {
		s.log.Warn("template slot skipped",
			zap.Int64("member_id", memberID), zap.Int("slot", slot), zap.Error(err))
		return nil
	}
	return pt
}

// Complete seals both templates before touching storage so a cipher failure never
// leaves a half-written record.
func (s *EnrollmentServiceImpl) Complete(ctx context.Context, memberID int64, fp1, fp2 []byte) error {
	if memberID <= 0 {
		return errs.ErrNotFound
	}
	if len(fp1) == 0 || len(fp2) == 0 {
		return fmt.Errorf("%w: both templates required", errs.ErrValidation)
	}
	enc1, err := s.cipher.Encrypt(fp1)
	if err != nil {
		return fmt.Errorf("encrypt fingerprint1: %w", err)
	}
	enc2, err := s.cipher.Encrypt(fp2)
	if err != nil {
		return fmt.Errorf("encrypt fingerprint2: %w", err)
	}
	return s.users.SetFingerprints(ctx, memberID, enc1, enc2)
}
