package extract

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/JakeFAU/socialgraph-parser/internal/parser"
)

// User entity keys.
const (
	keyAvatarURLTemplate = "avatarUrlTemplate"
	keyName              = "name"
	keyHeadline          = "headline"
	keyLocations         = "locations"
	keyBusiness          = "business"
	keyEmployments       = "employments"
	keyEducations        = "educations"
	keyDescription       = "description"
	keySinaWeiboURL      = "sinaWeiboUrl"
	keyGender            = "gender"
	keyFollowingCount    = "followingCount"
	keyFollowerCount     = "followerCount"
	keyAnswerCount       = "answerCount"
	keyQuestionCount     = "questionCount"
	keyVoteupCount       = "voteupCount"
)

// ExtractUserProfile projects entities.users[token] into a UserProfile. The
// profile's URLToken is always the lookup token.
func ExtractUserProfile(state State, token string) (parser.UserProfile, error) {
	users, err := state.users()
	if err != nil {
		return parser.UserProfile{}, err
	}
	entry, ok := users[token]
	if !ok {
		return parser.UserProfile{}, fmt.Errorf("user %q: %w", token, ErrNotFound)
	}
	user, ok := entry.(map[string]any)
	if !ok {
		return parser.UserProfile{}, fmt.Errorf("user %q is not an object: %w", token, ErrNotFound)
	}

	urlToken := token
	return parser.UserProfile{
		URLToken:          &urlToken,
		Name:              stringField(user, keyName),
		Headline:          stringField(user, keyHeadline),
		AvatarURLTemplate: stringField(user, keyAvatarURLTemplate),
		Locations:         names(user[keyLocations]),
		Business:          nameOf(user[keyBusiness]),
		Employments:       employments(user[keyEmployments]),
		Educations:        schools(user[keyEducations]),
		Description:       stringField(user, keyDescription),
		SinaWeiboURL:      stringField(user, keySinaWeiboURL),
		Gender:            intField(user, keyGender),
		FollowingCount:    intField(user, keyFollowingCount),
		FollowerCount:     intField(user, keyFollowerCount),
		AnswerCount:       intField(user, keyAnswerCount),
		QuestionCount:     intField(user, keyQuestionCount),
		VoteupCount:       intField(user, keyVoteupCount),
	}, nil
}

func stringField(m map[string]any, key string) *string {
	s, ok := m[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func intField(m map[string]any, key string) *int64 {
	var n int64
	switch v := m[key].(type) {
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return nil
			}
			var ok bool
			if i, ok = wholeInt64(f); !ok {
				return nil
			}
		}
		n = i
	case float64:
		i, ok := wholeInt64(v)
		if !ok {
			return nil
		}
		n = i
	case int:
		n = int64(v)
	case int64:
		n = v
	default:
		return nil
	}
	return &n
}

// wholeInt64 converts f when it is integral and fits in an int64.
func wholeInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// nameOf returns the display name of a referenced entity.
func nameOf(v any) *string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return stringField(m, keyName)
}

func names(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if name := nameOf(item); name != nil {
			out = append(out, *name)
		}
	}
	return out
}

func employments(v any) []parser.Employment {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []parser.Employment
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		e := parser.Employment{
			Job:     nameOf(m["job"]),
			Company: nameOf(m["company"]),
		}
		if e.Job == nil && e.Company == nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

func schools(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if school := nameOf(m["school"]); school != nil {
			out = append(out, *school)
		}
	}
	return out
}
