package caseAuth

import (
	"context"
	"fmt"
	"time"
)

const (
	auditEventUnknownUser       = "login_unknown_user"
	auditEventDirectoryFallback = "login_directory_fallback"
	auditEventDirectoryRejected = "login_directory_rejected"
	auditEventLocalRejected     = "login_local_rejected"
	auditEventLoginSuccess      = "login_success"
)

// Audit messages are part of the audit trail format and must not change.
const (
	auditMsgUnknownUser       = "someone tried to log in with user '%s', which does not exist"
	auditMsgDirectoryFallback = "wrong login password for user '%s' using LDAP auth - falling back to local based on settings"
	auditMsgDirectoryRejected = "wrong login password for user '%s' using LDAP auth"
	auditMsgLocalRejected     = "wrong login password for user '%s' using local auth"
	auditMsgLoginSuccess      = "user '%s' successfully logged-in"
)

var auditMessages = map[string]string{
	auditEventUnknownUser:       auditMsgUnknownUser,
	auditEventDirectoryFallback: auditMsgDirectoryFallback,
	auditEventDirectoryRejected: auditMsgDirectoryRejected,
	auditEventLocalRejected:     auditMsgLocalRejected,
	auditEventLoginSuccess:      auditMsgLoginSuccess,
}

// emitAudit records a login event. All login events are contextless and
// hidden from the UI.
func (e *Engine) emitAudit(ctx context.Context, eventType, username string) {
	if e == nil || e.audit == nil {
		return
	}

	format, ok := auditMessages[eventType]
	if !ok {
		return
	}

	event := AuditEvent{
		Timestamp:   e.now().UTC(),
		EventType:   eventType,
		Username:    username,
		IP:          clientIPFromContext(ctx),
		Message:     fmt.Sprintf(format, username),
		Success:     eventType == auditEventLoginSuccess,
		Contextless: true,
		VisibleInUI: false,
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now()
}
