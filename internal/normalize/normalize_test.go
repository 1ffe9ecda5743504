package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/socialgraph-parser/internal/parser"
)

func ptr[T any](v T) *T {
	return &v
}

func TestRenderEmployment(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		input  parser.Employment
		want   string
		wantOK bool
	}{
		{"job and company", parser.Employment{Job: ptr("Eng"), Company: ptr("Acme")}, "Acme-Eng", true},
		{"job only", parser.Employment{Job: ptr("Eng")}, "Eng", true},
		{"company only", parser.Employment{Company: ptr("Acme")}, "Acme", true},
		{"neither", parser.Employment{}, "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := RenderEmployment(tc.input)
			require.Equal(t, tc.wantOK, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeJoinsListFields(t *testing.T) {
	t.Parallel()

	profile := parser.UserProfile{
		URLToken:  ptr("alice"),
		Name:      ptr("Alice"),
		Locations: []string{"Beijing", "Shanghai"},
		Employments: []parser.Employment{
			{Job: ptr("Eng"), Company: ptr("Acme")},
			{},
			{Job: ptr("Writer")},
		},
		Educations:     []string{"MIT", "Tsinghua"},
		FollowingCount: ptr(int64(3)),
	}

	record := Normalize(profile)
	require.Equal(t, "Beijing;Shanghai", record.Locations)
	require.Equal(t, "Acme-Eng;Writer", record.Employments)
	require.Equal(t, "MIT;Tsinghua", record.Educations)
	require.Equal(t, "alice", *record.URLToken)
	require.Equal(t, "Alice", *record.Name)
	require.Equal(t, int64(3), *record.FollowingCount)
	require.Nil(t, record.Headline)
	require.Nil(t, record.FollowerCount)
	require.Empty(t, record.ContentHash)
	require.True(t, record.ParsedAt.IsZero())
}

func TestNormalizeEmptyProfile(t *testing.T) {
	t.Parallel()

	record := Normalize(parser.UserProfile{})
	require.Equal(t, parser.NormalizedUserRecord{}, record)
}

func TestNormalizeIsPure(t *testing.T) {
	t.Parallel()

	profile := parser.UserProfile{
		URLToken:    ptr("u1"),
		Locations:   []string{"A"},
		Employments: []parser.Employment{{Company: ptr("C"), Job: ptr("J")}},
		Educations:  []string{"S"},
	}
	first := Normalize(profile)
	second := Normalize(profile)
	require.Equal(t, first, second)
	require.Equal(t, []string{"A"}, profile.Locations)
}
