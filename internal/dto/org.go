package dto

// CreateOrgRequest represents a request to create a new organization with
// its admin account
type CreateOrgRequest struct {
	OrganizationName string `json:"organization_name" binding:"required,min=2,max=255"`
	Email            string `json:"email" binding:"required,email"`
	Password         string `json:"password" binding:"required,min=8,max=72"`
}

// UpdateOrgRequest represents a request to rename an organization and/or
// update its admin account. A rename applies before the credential
// changes.
type UpdateOrgRequest struct {
	CurrentOrganizationName string  `json:"current_organization_name" binding:"required"`
	NewOrganizationName     *string `json:"new_organization_name" binding:"omitempty,min=2,max=255"`
	NewEmail                *string `json:"new_email" binding:"omitempty,email"`
	NewPassword             *string `json:"new_password" binding:"omitempty,min=8,max=72"`
}

// Validate validates that at least one change is requested
func (r *UpdateOrgRequest) Validate() (bool, string) {
	if r.NewOrganizationName == nil && r.NewEmail == nil && r.NewPassword == nil {
		return false, "At least one of new_organization_name, new_email or new_password must be provided"
	}
	return true, ""
}

// OrgResponse represents organization data in responses
type OrgResponse struct {
	ID               string `json:"id"`
	OrganizationName string `json:"organization_name"`
	PartitionID      string `json:"partition_id"`
	AdminID          string `json:"admin_id"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}
