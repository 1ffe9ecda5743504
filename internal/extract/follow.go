package extract

import "slices"

// ExtractFollowTokens returns every key of entities.users except origin, sorted.
func ExtractFollowTokens(state State, origin string) ([]string, error) {
	users, err := state.users()
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(users))
	for token := range users {
		if token == origin {
			continue
		}
		tokens = append(tokens, token)
	}
	slices.Sort(tokens)
	return tokens, nil
}
