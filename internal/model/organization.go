package model

import "time"

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

type MemberRole string

const (
	MemberRoleOwner  MemberRole = "owner"
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

type ToneProfile string

const (
	ToneConversational ToneProfile = "Conversational"
	ToneProfessional   ToneProfile = "Professional"
	ToneCasual         ToneProfile = "Casual"
	ToneFormal         ToneProfile = "Formal"
)

// ValidToneProfile returns tone when it names a known profile, else fallback.
func ValidToneProfile(tone *string, fallback ToneProfile) ToneProfile {
	if tone == nil {
		return fallback
	}
	switch t := ToneProfile(*tone); t {
	case ToneConversational, ToneProfessional, ToneCasual, ToneFormal:
		return t
	default:
		return fallback
	}
}

// BrandSettings is the organization's voice. Every field is optional.
type BrandSettings struct {
	OrganizationID     string  `json:"organizationId"`
	ToneProfile        *string `json:"toneProfile"`
	CompanyName        *string `json:"companyName"`
	CompanyDescription *string `json:"companyDescription"`
	Audience           *string `json:"audience"`
	CustomInstructions *string `json:"customInstructions"`
}
