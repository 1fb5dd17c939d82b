package compsuite

import "github.com/tbraddock/showcircuit/internal/domain/catalog"

// List endpoints wrap their payload in a {"data": [...]} envelope; the event
// detail endpoint returns the object bare.

type seasonsEnvelope struct {
	Data []catalog.Season `json:"data"`
}

type seasonEnvelope struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type eventsEnvelope struct {
	Data []catalog.Event `json:"data"`
}

type groupsEnvelope struct {
	Data []catalog.Group `json:"data"`
}

type tokenEnvelope struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}
