package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/use-agent/pageaudit/models"
)

// Kind is the caller-facing category of a failed audit.
type Kind int

const (
	KindUnknown Kind = iota
	KindTimeout
	KindDomainNotFound
	KindConnectionRefused
	KindCertificate
	KindBlockedByClient
)

var kindInfo = map[Kind]struct{ code, message string }{
	KindUnknown:           {models.ErrCodeUnknown, models.MsgUnknown},
	KindTimeout:           {models.ErrCodeTimeout, models.MsgTimeout},
	KindDomainNotFound:    {models.ErrCodeDomainNotFound, models.MsgDomainNotFound},
	KindConnectionRefused: {models.ErrCodeConnectionRefused, models.MsgConnectionRefused},
	KindCertificate:       {models.ErrCodeCertificate, models.MsgCertificate},
	KindBlockedByClient:   {models.ErrCodeBlockedByClient, models.MsgBlockedByClient},
}

// Code returns the internal error code for k.
func (k Kind) Code() string { return kindInfo[k].code }

// Message returns the caller-facing message for k.
func (k Kind) Message() string { return kindInfo[k].message }

func (k Kind) String() string { return k.Code() }

// Matchers are checked in order; the first hit wins. Timeouts are handled
// before these in Classify.
var matchers = []struct {
	kind    Kind
	needles []string
}{
	{KindDomainNotFound, []string{"ERR_NAME_NOT_RESOLVED"}},
	{KindConnectionRefused, []string{"ERR_CONNECTION_REFUSED"}},
	{KindCertificate, []string{"ERR_CERT_", "ERR_SSL_", "ERR_BAD_SSL_CLIENT_AUTH_CERT"}},
	{KindBlockedByClient, []string{"ERR_BLOCKED_BY_CLIENT"}},
}

// Classify maps a navigation or extraction error to exactly one Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "navigation timeout") {
		return KindTimeout
	}
	for _, m := range matchers {
		for _, needle := range m.needles {
			if strings.Contains(msg, needle) {
				return m.kind
			}
		}
	}
	return KindUnknown
}

// classifyError wraps err into an AuditError carrying its Kind.
func classifyError(err error) *models.AuditError {
	k := Classify(err)
	return models.NewAuditError(k.Code(), k.Message(), err)
}
