package models

import "time"

type Role string

const (
	RoleFarmer     Role = "farmer"
	RoleAgronomist Role = "agronomist"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleAgronomist, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Phone        string    `json:"phone"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AnalysisSession aggregates are nil until the batch that opened the session
// has been processed.
type AnalysisSession struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id,omitempty"`
	NumImages        int       `json:"num_images_processed"`
	CanopyCover      *float64  `json:"canopy_cover"`
	StressPercentage *float64  `json:"stress_percentage"`
	YieldEstimate    *float64  `json:"yield_estimate"`
	VARI             *float64  `json:"vari"`
	GLI              *float64  `json:"gli"`
	EXG              *float64  `json:"exg"`
	CreatedAt        time.Time `json:"created_at"`
}

type DroneImage struct {
	ID            int64     `json:"id"`
	SessionID     int64     `json:"session_id"`
	ImagePath     string    `json:"image_path"`
	OriginalName  string    `json:"original_name"`
	VARI          float64   `json:"vari"`
	EXG           float64   `json:"exg"`
	GLI           float64   `json:"gli"`
	CanopyPct     float64   `json:"canopy_pct"`
	StressPct     float64   `json:"stress_pct"`
	YieldEstimate float64   `json:"yield_estimate"`
	CreatedAt     time.Time `json:"created_at"`
}

type ChatRecord struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	Message     string    `json:"message"`
	Response    string    `json:"response"`
	Path        string    `json:"path"`
	ContextUsed bool      `json:"context_used"`
	LatencyMS   int       `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}
