package access

import "time"

// Role of an account.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Status of an access request. StatusNoRequest is reported, never stored.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDenied    Status = "denied"
	StatusNoRequest Status = "no_request"
)

// Decision an admin takes on an access request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

func (d Decision) status() (Status, bool) {
	switch d {
	case DecisionApprove:
		return StatusApproved, true
	case DecisionDeny:
		return StatusDenied, true
	default:
		return "", false
	}
}

// Account is one registered identity. TenantID namespaces the account's documents
// and is independent of the email used to log in.
type Account struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Role         Role      `json:"role"`
	TenantID     string    `json:"tenant_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// AccessRequest gates a non-admin account's use of tenant storage.
type AccessRequest struct {
	Email       string     `json:"email"`
	Status      Status     `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	ApprovedAt  *time.Time `json:"approved_at"`
	ApprovedBy  *string    `json:"approved_by"`
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Email     string
	Role      Role
	Token     string
	ExpiresAt time.Time
}

// Principal is the identity behind a verified session token.
type Principal struct {
	Email string
	Role  Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
