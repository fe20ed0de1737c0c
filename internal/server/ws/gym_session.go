package ws

import (
	"context"
	"encoding/base64"
	"errors"

	"go.uber.org/zap"

	"github.com/and161185/gymdesk/internal/errs"
	"github.com/and161185/gymdesk/internal/model"
)

// Operator-facing messages.
const (
	msgMemberCannotLogin  = "Los usuarios no pueden iniciar sesión en el sistema"
	msgInactive           = "Usuario inactivo"
	msgBadCredentials     = "Correo electrónico o contraseña incorrectos"
	msgRateLimited        = "Demasiados intentos, intente más tarde"
	msgUserConnMissing    = "No se encontró la conexión del usuario"
	msgGymConnMissing     = "No se encontró la conexión del gimnasio"
	msgUserNotFound       = "Usuario no encontrado"
	msgUserNotEstablished = "Usuario no establecido"
	msgFingerprint1       = "Huella digital 1 faltante"
	msgFingerprint2       = "Huella digital 2 faltante"
	msgFingerprintInvalid = "Huella digital inválida"
	msgStoreFailed        = "Error al almacenar huella digital"
	msgTemplatesFailed    = "Error al descargar plantillas"
	msgLookupFailed       = "Error al consultar usuario"
	msgEnrollmentDone     = "Huella digital almacenada exitosamente"
)

// gymSession is the per-connection state of a kiosk socket.
type gymSession struct {
	h      *Handler
	conn   *Conn
	gymID  int64
	remote string

	peerUserID int64       // operator that logged in; key of the user socket
	member     *model.User // enrollment target set by a user frame
	lastIndex  int
}

func (s *gymSession) peer() *Conn {
	if s.peerUserID == 0 {
		return nil
	}
	return s.h.reg.User(s.peerUserID)
}

func (s *gymSession) reply(msg any) { _ = s.h.reg.Send(s.conn, msg) }

func (s *gymSession) fail(text string) { s.h.sendError(s.conn, typeError, text) }

// forward sends msg to the operator socket and reports a missing or dead peer back to the kiosk.
func (s *gymSession) forward(msg any) bool {
	p := s.peer()
	if p == nil || s.h.reg.Send(p, msg) != nil {
		s.fail(msgUserConnMissing)
		return false
	}
	return true
}

func (s *gymSession) handle(ctx context.Context, in Inbound) bool {
	switch m := in.(type) {
	case LoginMsg:
		s.login(ctx, m)
	case UserMsg:
		s.selectMember(ctx, m)
	case DownloadTemplatesMsg:
		s.downloadTemplates(ctx)
	case EnrollmentCompletedMsg:
		s.completeEnrollment(ctx, m)
	case DisconnectMsg:
		s.h.reg.Disconnect(s.conn)
		return true
	case PassthroughMsg:
		p := s.peer()
		if p == nil || s.h.reg.SendRaw(p, m.Raw()) != nil {
			s.fail(msgUserConnMissing)
		}
	}
	return false
}

func (s *gymSession) login(ctx context.Context, m LoginMsg) {
	u, err := s.h.auth.AuthenticateOperator(ctx, m.Email, m.Password, s.remote)
	if err != nil {
		s.fail(s.loginError(err))
		return
	}
	s.peerUserID = u.ID

	p := s.peer()
	if p == nil {
		s.fail(msgUserConnMissing)
		return
	}
	s.reply(typedFrame{Type: typeConnected})
	if err := s.h.reg.Send(p, fingerprintConnectedFrame{Type: typeFingerprintConnected, GymID: s.gymID}); err != nil {
		s.fail(msgUserConnMissing)
	}
}

func (s *gymSession) loginError(err error) string {
	switch {
	case errors.Is(err, errs.ErrForbidden):
		return msgMemberCannotLogin
	case errors.Is(err, errs.ErrInactive):
		return msgInactive
	case errors.Is(err, errs.ErrUnauthorized):
		return msgBadCredentials
	case errors.Is(err, errs.ErrRateLimited):
		return msgRateLimited
	}
	s.h.log.Error("socket login failed", zap.Int64("gym_id", s.gymID), zap.Error(err))
	return msgBadCredentials
}

func (s *gymSession) selectMember(ctx context.Context, m UserMsg) {
	var (
		u   *model.User
		err error
	)
	if m.HasID {
		u, err = s.h.enroll.Member(ctx, m.ID)
	} else {
		err = errs.ErrNotFound
	}
	// Members of other gyms are invisible to this kiosk.
	if err == nil && u.GymID != s.gymID {
		err = errs.ErrNotFound
	}
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			s.h.log.Error("member lookup failed", zap.Int64("member_id", m.ID), zap.Error(err))
			s.fail(msgLookupFailed)
			return
		}
		s.fail(msgUserNotFound)
		s.h.sendError(s.peer(), typeUserError, msgUserNotFound)
		return
	}

	if !s.forward(typedFrame{Type: typeUserEstablished}) {
		return
	}
	s.member = u
	s.reply(startEnrollmentFrame{
		Type:       typeStartEnrollment,
		ID:         u.ID,
		DocumentID: u.DocumentID,
		FullName:   u.FullName,
		Email:      u.Email,
	})
}

// downloadTemplates serves one page per request. The cursor advances by the
// page length plus one, so the member following each page is not sent.
func (s *gymSession) downloadTemplates(ctx context.Context) {
	recs, err := s.h.enroll.TemplatePage(ctx, s.gymID, s.lastIndex, s.h.opts.TemplatePageSize)
	if err != nil {
		s.h.log.Error("template page failed", zap.Int64("gym_id", s.gymID), zap.Int("offset", s.lastIndex), zap.Error(err))
		s.fail(msgTemplatesFailed)
		return
	}
	if len(recs) == 0 {
		s.reply(typedFrame{Type: typeDownloadTemplatesCompleted})
		s.lastIndex = 0
		return
	}

	data := make([]templateEntry, 0, len(recs))
	for _, r := range recs {
		e := templateEntry{ID: r.ID, DocumentID: r.DocumentID, FullName: r.FullName, Email: r.Email}
		if r.Fingerprint1 != nil {
			e.Fingerprint1 = base64.StdEncoding.EncodeToString(r.Fingerprint1)
		}
		if r.Fingerprint2 != nil {
			e.Fingerprint2 = base64.StdEncoding.EncodeToString(r.Fingerprint2)
		}
		data = append(data, e)
	}
	s.reply(templateDataSetFrame{Type: typeTemplateDataSet, Data: data})
	s.lastIndex += len(recs) + 1
}

func (s *gymSession) enrollmentError(text string) {
	s.h.sendError(s.conn, typeEnrollmentError, text)
	s.h.sendError(s.peer(), typeEnrollmentError, text)
}

func (s *gymSession) completeEnrollment(ctx context.Context, m EnrollmentCompletedMsg) {
	if m.Fingerprint1 == nil {
		s.enrollmentError(msgFingerprint1)
		return
	}
	if m.Fingerprint2 == nil {
		s.enrollmentError(msgFingerprint2)
		return
	}
	if s.member == nil {
		s.fail(msgUserNotEstablished)
		return
	}
	if m.Malformed {
		s.enrollmentError(msgFingerprintInvalid)
		return
	}
	fp1, err1 := base64.StdEncoding.DecodeString(*m.Fingerprint1)
	fp2, err2 := base64.StdEncoding.DecodeString(*m.Fingerprint2)
	if err1 != nil || err2 != nil {
		s.enrollmentError(msgFingerprintInvalid)
		return
	}

	if err := s.h.enroll.Complete(ctx, s.member.ID, fp1, fp2); err != nil {
		s.h.log.Error("store fingerprints failed", zap.Int64("member_id", s.member.ID), zap.Error(err))
		s.fail(msgStoreFailed)
		return
	}
	s.forward(enrollmentCompletedFrame{Type: typeEnrollmentCompleted, Message: msgEnrollmentDone})
}
