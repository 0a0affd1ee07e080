package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleSecretary Role = "SECRETARY"
	RoleTeacher   Role = "TEACHER"
	RoleStaff     Role = "STAFF"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSecretary, RoleTeacher, RoleStaff:
		return true
	default:
		return false
	}
}

// Administrative reports whether the role adjudicates requests.
func (r Role) Administrative() bool {
	return r == RoleAdmin || r == RoleSecretary
}

type RequestType string

const (
	RequestTypeLeave        RequestType = "LEAVE"
	RequestTypeAbsence      RequestType = "ABSENCE"
	RequestTypeAttestation  RequestType = "ATTESTATION"
	RequestTypeMissionOrder RequestType = "MISSION_ORDER"
	RequestTypeOvertime     RequestType = "OVERTIME"
)

func ParseRequestType(value string) (RequestType, bool) {
	t := RequestType(strings.ToUpper(strings.TrimSpace(value)))
	switch t {
	case RequestTypeLeave, RequestTypeAbsence, RequestTypeAttestation, RequestTypeMissionOrder, RequestTypeOvertime:
		return t, true
	default:
		return "", false
	}
}

// AcceptsDocuments reports whether files may be attached to requests of this type.
func (t RequestType) AcceptsDocuments() bool {
	return t == RequestTypeMissionOrder || t == RequestTypeOvertime
}

type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
)

func ParseRequestStatus(value string) (RequestStatus, bool) {
	s := RequestStatus(strings.ToUpper(strings.TrimSpace(value)))
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return s, true
	default:
		return "", false
	}
}

func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role
	Active       bool
	CreatedAt    time.Time
}

// Identity is the acting principal resolved for a single call.
type Identity struct {
	ID    int64
	Email string
	Role  Role
}

type Request struct {
	ID          int64
	OwnerID     int64
	Type        RequestType
	Title       string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      RequestStatus
	Comment     *string
	DecidedBy   *int64
	DecidedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Document struct {
	ID           int64
	RequestID    int64
	StoredName   string
	OriginalName string
	StoragePath  string
	Size         int64
	ContentType  string
	UploadedAt   time.Time
}
