package ws

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
)

// Inbound frame types.
const (
	typeLogin               = "login"
	typeUser                = "user"
	typeDownloadTemplates   = "download_templates"
	typeEnrollmentCompleted = "enrollment_completed"
	typeDisconnect          = "disconnect"
)

// Outbound frame types.
const (
	typeConnected                  = "connected"
	typeFingerprintConnected       = "fingerprint_connected"
	typeUserEstablished            = "user_established"
	typeStartEnrollment            = "start_enrollment"
	typeDownloadTemplatesCompleted = "download_templates_completed"
	typeTemplateDataSet            = "template_data_set"
	typeEnrollmentError            = "enrollment_error"
	typeUserError                  = "user_error"
	typeError                      = "error"
)

// ErrMissingType is returned for a JSON object without a string "type".
var ErrMissingType = errors.New("missing message type")

// Inbound is one decoded client frame. The set of variants is closed.
type Inbound interface {
	Type() string
	// Raw returns the frame exactly as received.
	Raw() []byte
	inbound()
}

type frame struct {
	typ string
	raw []byte
}

func (f frame) Type() string { return f.typ }
func (f frame) Raw() []byte  { return f.raw }
func (frame) inbound()       {}

// LoginMsg carries operator credentials.
type LoginMsg struct {
	frame
	Email    string
	Password string
}

// UserMsg selects the member to enroll. HasID is false when no id was sent.
type UserMsg struct {
	frame
	ID    int64
	HasID bool
}

type DownloadTemplatesMsg struct{ frame }

// EnrollmentCompletedMsg carries base64 templates; nil means the field was absent or empty.
// Malformed is set when a template field holds something other than a string.
type EnrollmentCompletedMsg struct {
	frame
	Fingerprint1 *string
	Fingerprint2 *string
	Malformed    bool
}

type DisconnectMsg struct{ frame }

// PassthroughMsg is any other type; it is relayed untouched.
type PassthroughMsg struct{ frame }

type typeOnly struct {
	Type *string `json:"type"`
}

type loginFields struct {
	LoginData any `json:"login_data"`
}

type userFields struct {
	ID     any `json:"id"`
	UserID any `json:"user_id"`
}

type enrollmentFields struct {
	Fingerprint1 any `json:"fingerprint1"`
	Fingerprint2 any `json:"fingerprint2"`
}

// ParseInbound decodes a text frame into its variant. Only "type" is read
// up front; variant fields are decoded per case and passthrough frames are
// never inspected further.
func ParseInbound(data []byte) (Inbound, error) {
	var t typeOnly
	if err := sonic.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if t.Type == nil || *t.Type == "" {
		return nil, ErrMissingType
	}
	f := frame{typ: *t.Type, raw: append([]byte(nil), data...)}

	switch f.typ {
	case typeLogin:
		var w loginFields
		if err := sonic.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		m := LoginMsg{frame: f}
		if ld, ok := w.LoginData.(map[string]any); ok {
			m.Email, _ = ld["email"].(string)
			m.Password, _ = ld["password"].(string)
		}
		return m, nil
	case typeUser:
		var w userFields
		if err := sonic.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		m := UserMsg{frame: f}
		raw := w.ID
		if raw == nil {
			raw = w.UserID
		}
		if raw != nil {
			id, err := parseID(raw)
			if err != nil {
				return nil, err
			}
			m.ID, m.HasID = id, true
		}
		return m, nil
	case typeDownloadTemplates:
		return DownloadTemplatesMsg{f}, nil
	case typeEnrollmentCompleted:
		var w enrollmentFields
		if err := sonic.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		m := EnrollmentCompletedMsg{frame: f}
		var bad1, bad2 bool
		m.Fingerprint1, bad1 = slot(w.Fingerprint1)
		m.Fingerprint2, bad2 = slot(w.Fingerprint2)
		m.Malformed = bad1 || bad2
		return m, nil
	case typeDisconnect:
		return DisconnectMsg{f}, nil
	default:
		return PassthroughMsg{f}, nil
	}
}

// slot returns nil for an absent or empty template. A value that is not a
// string counts as present and is reported as malformed.
func slot(v any) (*string, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case string:
		return nonEmpty(&x), false
	}
	empty := ""
	return &empty, true
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// parseID accepts integral JSON numbers and numeric strings.
func parseID(v any) (int64, error) {
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt64 || x < math.MinInt64 {
			return 0, fmt.Errorf("invalid id %v", x)
		}
		return int64(x), nil
	case string:
		id, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid id %q", x)
		}
		return id, nil
	}
	return 0, fmt.Errorf("invalid id type %T", v)
}

type typedFrame struct {
	Type string `json:"type"`
}

type errorFrame struct {
	Type      string `json:"type"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
}

func parseErrorFrame(err error) errorFrame {
	return errorFrame{
		Type:      typeError,
		Error:     "Error description: " + err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

type fingerprintConnectedFrame struct {
	Type  string `json:"type"`
	GymID int64  `json:"gym_id"`
}

type startEnrollmentFrame struct {
	Type       string `json:"type"`
	ID         int64  `json:"id"`
	DocumentID string `json:"document_id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
}

type templateEntry struct {
	ID           int64  `json:"id"`
	DocumentID   string `json:"document_id"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Fingerprint1 string `json:"fingerprint1,omitempty"`
	Fingerprint2 string `json:"fingerprint2,omitempty"`
}

type templateDataSetFrame struct {
	Type string          `json:"type"`
	Data []templateEntry `json:"data"`
}

type enrollmentCompletedFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type userRelayFrame struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}
