package domain

import "strings"

const (
	ModeHonor            = "honor"
	ModeAudit            = "audit"
	ModeVerified         = "verified"
	ModeProfessional     = "professional"
	ModeNoIDProfessional = "no-id-professional"
	ModeCredit           = "credit"

	DefaultMode = ModeHonor
)

// ModePolicy describes what a mode entitles the learner to.
type ModePolicy struct {
	Paid                bool
	VerifiedIdentity    bool
	CertificateEligible bool
	// Exclusive modes hide every other mode when offered.
	Exclusive bool
}

var modePolicies = map[string]ModePolicy{
	ModeHonor:            {CertificateEligible: true},
	ModeAudit:            {},
	ModeVerified:         {Paid: true, VerifiedIdentity: true, CertificateEligible: true},
	ModeProfessional:     {Paid: true, VerifiedIdentity: true, CertificateEligible: true, Exclusive: true},
	ModeNoIDProfessional: {Paid: true, CertificateEligible: true, Exclusive: true},
	ModeCredit:           {Paid: true, VerifiedIdentity: true, CertificateEligible: true},
}

// KnownModes returns every mode with a policy, in display order.
func KnownModes() []string {
	return []string{ModeHonor, ModeAudit, ModeVerified, ModeProfessional, ModeNoIDProfessional, ModeCredit}
}

// PolicyFor returns the policy of mode and whether mode is known.
func PolicyFor(mode string) (ModePolicy, bool) {
	policy, ok := modePolicies[mode]
	return policy, ok
}

// NormalizeMode trims and lower-cases mode, defaulting to honor.
func NormalizeMode(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		return DefaultMode
	}
	return mode
}

func ValidateMode(mode string) error {
	if _, ok := modePolicies[mode]; !ok {
		return ErrInvalidMode
	}
	return nil
}

// SelectableModes filters the modes a course offers down to the ones a
// learner may pick. Unknown modes are dropped; when an exclusive mode is on
// offer only exclusive modes remain.
func SelectableModes(available []string) []string {
	known := make([]string, 0, len(available))
	exclusive := make([]string, 0, len(available))
	for _, mode := range available {
		policy, ok := modePolicies[mode]
		if !ok {
			continue
		}
		known = append(known, mode)
		if policy.Exclusive {
			exclusive = append(exclusive, mode)
		}
	}
	if len(exclusive) > 0 {
		return exclusive
	}
	return known
}
