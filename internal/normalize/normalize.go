// Package normalize flattens parsed profiles into storage records.
package normalize

import (
	"strings"

	"github.com/JakeFAU/socialgraph-parser/internal/parser"
)

// Separator joins list-valued fields.
const Separator = ";"

// Normalize flattens the list-valued fields of profile. ContentHash and
// ParsedAt are left for the caller.
func Normalize(profile parser.UserProfile) parser.NormalizedUserRecord {
	employments := make([]string, 0, len(profile.Employments))
	for _, e := range profile.Employments {
		if s, ok := RenderEmployment(e); ok {
			employments = append(employments, s)
		}
	}
	return parser.NormalizedUserRecord{
		URLToken:          profile.URLToken,
		Name:              profile.Name,
		Headline:          profile.Headline,
		AvatarURLTemplate: profile.AvatarURLTemplate,
		Locations:         strings.Join(profile.Locations, Separator),
		Business:          profile.Business,
		Employments:       strings.Join(employments, Separator),
		Educations:        strings.Join(profile.Educations, Separator),
		Description:       profile.Description,
		SinaWeiboURL:      profile.SinaWeiboURL,
		Gender:            profile.Gender,
		FollowingCount:    profile.FollowingCount,
		FollowerCount:     profile.FollowerCount,
		AnswerCount:       profile.AnswerCount,
		QuestionCount:     profile.QuestionCount,
		VoteupCount:       profile.VoteupCount,
	}
}

// RenderEmployment formats e as "company-job". The hyphen is dropped when one
// side is missing; ok is false when both are.
func RenderEmployment(e parser.Employment) (string, bool) {
	switch {
	case e.Company != nil && e.Job != nil:
		return *e.Company + "-" + *e.Job, true
	case e.Company != nil:
		return *e.Company, true
	case e.Job != nil:
		return *e.Job, true
	default:
		return "", false
	}
}
