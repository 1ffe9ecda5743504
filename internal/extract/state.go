// Package extract locates the serialized application state embedded in a user
// page and projects it into profiles and follow-list tokens.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	stateSelector  = "div#data"
	stateAttribute = "data-state"
)

var (
	// ErrNotFound means the page or the decoded state lacks the requested data.
	ErrNotFound = errors.New("not found")
	// ErrMalformedData means the state container was present but could not be decoded.
	ErrMalformedData = errors.New("malformed data")
)

// State is the decoded JSON tree of a page's initial application state.
// Numbers are kept as json.Number.
type State map[string]any

// ExtractEmbeddedState finds the state container in page and decodes it.
func ExtractEmbeddedState(page string) (State, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%w: parse page: %w", ErrMalformedData, err)
	}
	container := doc.Find(stateSelector).First()
	if container.Length() == 0 {
		return nil, fmt.Errorf("state container: %w", ErrNotFound)
	}
	raw, ok := container.Attr(stateAttribute)
	if !ok {
		return nil, fmt.Errorf("state attribute: %w", ErrNotFound)
	}

	text, err := stripMarkup(html.UnescapeString(raw))
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var state State
	if err := dec.Decode(&state); err != nil {
		return nil, fmt.Errorf("%w: decode state: %w", ErrMalformedData, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after state", ErrMalformedData)
	}
	if state == nil {
		return nil, fmt.Errorf("%w: state is null", ErrMalformedData)
	}
	return state, nil
}

// stripMarkup keeps only the text content of the decoded attribute value.
// It runs on every value so entity handling does not depend on whether tags
// happen to be present.
func stripMarkup(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("%w: strip markup: %w", ErrMalformedData, err)
	}
	return doc.Text(), nil
}

// users returns the entities.users map of the state.
func (s State) users() (map[string]any, error) {
	entities, ok := s["entities"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("entities: %w", ErrNotFound)
	}
	users, ok := entities["users"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("entities.users: %w", ErrNotFound)
	}
	return users, nil
}
