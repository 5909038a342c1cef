package session

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	fieldUsername        = "username"
	fieldPrincipal       = "principal"
	fieldAuthenticatedAt = "authenticated_at"
	fieldPermissions     = "permissions"
	fieldPermissionNames = "permission_names"
	fieldMFAVerified     = "mfa_verified"
	fieldCaseID          = "case_id"
	fieldCaseName        = "case_name"
	fieldCaseInfo        = "case_info"
)

// ErrStateCorrupt is returned when a stored hash cannot be decoded.
var ErrStateCorrupt = errors.New("session state corrupt")

func encode(s *State) map[string]any {
	fields := map[string]any{
		fieldUsername:    s.Username,
		fieldPrincipal:   s.Principal,
		fieldPermissions: strconv.FormatUint(s.Permissions, 10),
		fieldMFAVerified: strconv.FormatBool(s.MFAVerified),
	}
	if !s.AuthenticatedAt.IsZero() {
		fields[fieldAuthenticatedAt] = strconv.FormatInt(s.AuthenticatedAt.Unix(), 10)
	}
	if len(s.PermissionNames) > 0 {
		fields[fieldPermissionNames] = strings.Join(s.PermissionNames, ",")
	}
	if s.CurrentCase != nil {
		fields[fieldCaseID] = strconv.FormatInt(s.CurrentCase.ID, 10)
		fields[fieldCaseName] = s.CurrentCase.Name
		fields[fieldCaseInfo] = s.CurrentCase.Info
	}
	return fields
}

func decode(sessionID string, fields map[string]string) (*State, error) {
	s := &State{
		SessionID: sessionID,
		Username:  fields[fieldUsername],
		Principal: fields[fieldPrincipal],
	}

	if v, ok := fields[fieldPermissions]; ok && v != "" {
		mask, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, ErrStateCorrupt
		}
		s.Permissions = mask
	}
	if v := fields[fieldPermissionNames]; v != "" {
		s.PermissionNames = strings.Split(v, ",")
	}
	if v, ok := fields[fieldMFAVerified]; ok && v != "" {
		verified, err := strconv.ParseBool(v)
		if err != nil {
			return nil, ErrStateCorrupt
		}
		s.MFAVerified = verified
	}
	if v := fields[fieldAuthenticatedAt]; v != "" {
		unix, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, ErrStateCorrupt
		}
		s.AuthenticatedAt = time.Unix(unix, 0).UTC()
	}
	if v, ok := fields[fieldCaseID]; ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, ErrStateCorrupt
		}
		s.CurrentCase = &CaseDescriptor{
			ID:   id,
			Name: fields[fieldCaseName],
			Info: fields[fieldCaseInfo],
		}
	}

	return s, nil
}
