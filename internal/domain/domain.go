package domain

type Organization struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Industry    string `json:"industry,omitempty"`
	Size        string `json:"size,omitempty"`
	Country     string `json:"country,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Department struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type User struct {
	ID           string  `json:"id"`
	OrgID        string  `json:"org_id"`
	DepartmentID *string `json:"department_id,omitempty"`
	Name         string  `json:"name"`
	Email        string  `json:"email,omitempty"`
	Role         string  `json:"role,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

type Regulation struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Name        string `json:"name"`
	Authority   string `json:"authority,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Process struct {
	ID          string  `json:"id"`
	OrgID       string  `json:"org_id"`
	Name        string  `json:"name"`
	OwnerID     *string `json:"owner_id,omitempty"`
	Description string  `json:"description,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

type Issue struct {
	ID            string   `json:"id"`
	OrgID         string   `json:"org_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Domain        string   `json:"domain,omitempty"`
	Category      string   `json:"category,omitempty"`
	IssueType     string   `json:"issue_type,omitempty"`
	Status        string   `json:"status" enum:"open,in_review,mitigated,closed"`
	DueDate       *string  `json:"due_date,omitempty"`
	DepartmentID  *string  `json:"department_id,omitempty"`
	OwnerID       *string  `json:"owner_id,omitempty"`
	RegulationIDs []string `json:"regulation_ids,omitempty"`
	ProcessIDs    []string `json:"process_ids,omitempty"`
	CreatedAt     string   `json:"created_at" format:"date-time"`
	UpdatedAt     string   `json:"updated_at" format:"date-time"`
}

type Stakeholder struct {
	ID           string  `json:"id"`
	OrgID        string  `json:"org_id"`
	Name         string  `json:"name"`
	Type         string  `json:"type" enum:"Internal,External,Third Party"`
	Status       string  `json:"status"`
	DepartmentID *string `json:"department_id,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

type StakeholderNeed struct {
	ID              string `json:"id"`
	StakeholderID   string `json:"stakeholder_id"`
	NeedExpectation string `json:"need_expectation"`
	CreatedAt       string `json:"created_at" format:"date-time"`
}

// OptionValue is one entry of an extendable enumeration (issue domains,
// categories, issue types, need expectations). Seeded values carry
// Custom=false; values added through the API carry Custom=true.
type OptionValue struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Kind      string `json:"kind" enum:"domain,category,issue_type,need_expectation"`
	Value     string `json:"value"`
	Custom    bool   `json:"custom"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Asset struct {
	ID             string  `json:"id"`
	OrgID          string  `json:"org_id"`
	Name           string  `json:"name"`
	AssetType      string  `json:"asset_type,omitempty"`
	Classification string  `json:"classification,omitempty"`
	OwnerID        *string `json:"owner_id,omitempty"`
	Location       string  `json:"location,omitempty"`
	Status         string  `json:"status,omitempty"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
	UpdatedAt      string  `json:"updated_at" format:"date-time"`
}

type RiskCategory struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type ControlStrength struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Risk struct {
	ID                string  `json:"id"`
	OrgID             string  `json:"org_id"`
	Title             string  `json:"title"`
	Description       string  `json:"description,omitempty"`
	CategoryID        *string `json:"category_id,omitempty"`
	AssetID           *string `json:"asset_id,omitempty"`
	Likelihood        int     `json:"likelihood" minimum:"1" maximum:"5"`
	Impact            int     `json:"impact" minimum:"1" maximum:"5"`
	Score             int     `json:"score"`
	ControlStrengthID *string `json:"control_strength_id,omitempty"`
	Status            string  `json:"status" enum:"identified,assessed,treated,accepted,closed"`
	OwnerID           *string `json:"owner_id,omitempty"`
	CreatedAt         string  `json:"created_at" format:"date-time"`
	UpdatedAt         string  `json:"updated_at" format:"date-time"`
}

type Audit struct {
	ID        string  `json:"id"`
	OrgID     string  `json:"org_id"`
	Title     string  `json:"title"`
	AuditType string  `json:"audit_type,omitempty"`
	Scope     string  `json:"scope,omitempty"`
	Status    string  `json:"status" enum:"planned,in_progress,reporting,closed"`
	LeadID    *string `json:"lead_id,omitempty"`
	StartedAt *string `json:"started_at,omitempty" format:"date-time"`
	ClosedAt  *string `json:"closed_at,omitempty" format:"date-time"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	OrgID      string `json:"org_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
