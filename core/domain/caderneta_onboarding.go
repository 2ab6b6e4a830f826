package domain

// Stage is a step of the registration conversation.
type Stage string

const (
	StageInitial                 Stage = "INITIAL"
	StageWaitingFullName         Stage = "WAITING_FULL_NAME"
	StageWaitingEmail            Stage = "WAITING_EMAIL"
	StageWaitingCodeConfirmation Stage = "WAITING_CODE_CONFIRMATION"
	StageCompleted               Stage = "COMPLETED"
)

// Profile is the partially collected registration data.
type Profile struct {
	Phone     string `json:"phone"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// ConversationState is the persisted onboarding record for one identity.
// A missing record is read as StageInitial.
type ConversationState struct {
	IdentityKey       string  `json:"identity_key"`
	Stage             Stage   `json:"stage"`
	Profile           Profile `json:"profile"`
	RemainingAttempts int     `json:"remaining_attempts,omitempty"`
	CodeHash          []byte  `json:"code_hash,omitempty"`
	LinkedUserID      string  `json:"linked_user_id,omitempty"`
}

// IsLinking reports whether the identity is joining an existing user.
func (s *ConversationState) IsLinking() bool {
	return s.LinkedUserID != ""
}
