package models

// ActingScope is the resolved authority of the acting user: which
// schools (and, for teachers, which classes) it may touch. It is
// resolved once per request and passed down; business code never
// branches on the raw role.
type ActingScope struct {
	UserID     string   `json:"user_id"`
	Role       UserRole `json:"role"`
	AllSchools bool     `json:"all_schools"`
	SchoolIDs  []string `json:"school_ids,omitempty"`
	ClassIDs   []string `json:"class_ids,omitempty"`
}

// AllowsSchool reports whether the scope covers the given school.
func (s ActingScope) AllowsSchool(schoolID string) bool {
	if s.AllSchools {
		return true
	}
	for _, id := range s.SchoolIDs {
		if id == schoolID {
			return true
		}
	}
	return false
}

// AllowsClass reports whether the scope covers the given class. An
// explicit class set binds: a teacher scope carries its linked classes
// and must not reach sibling classes just because they share a school.
// Scopes without a class set (admin, manager) keep school-level
// authority, so callers pass the class's school as well.
func (s ActingScope) AllowsClass(classID, schoolID string) bool {
	if len(s.ClassIDs) > 0 {
		for _, id := range s.ClassIDs {
			if id == classID {
				return true
			}
		}
		return false
	}
	return s.AllowsSchool(schoolID)
}
