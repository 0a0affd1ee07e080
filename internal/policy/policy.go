// Package policy decides who may see and change requests and their documents.
// Every function is pure; callers turn a false result into Forbidden.
package policy

import "adminportal/requests/internal/model"

func CanListAll(id model.Identity) bool {
	return id.Role.Administrative()
}

func CanReadRequest(id model.Identity, req model.Request) bool {
	return id.Role.Administrative() || id.ID == req.OwnerID
}

func CanMutateContent(id model.Identity, req model.Request) bool {
	return id.ID == req.OwnerID
}

func CanMutateStatus(id model.Identity) bool {
	return id.Role.Administrative()
}

func CanDelete(id model.Identity, req model.Request) bool {
	return id.Role.Administrative() || id.ID == req.OwnerID
}

func CanAttachDocuments(id model.Identity, req model.Request) bool {
	return id.ID == req.OwnerID && req.Type.AcceptsDocuments()
}

// CanDeleteDocument is owner-only; administrators remove attachments by
// deleting the whole request.
func CanDeleteDocument(id model.Identity, req model.Request) bool {
	return id.ID == req.OwnerID
}
